package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postwright/postwright/pkg/budget"
	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/models"
)

func alert(level models.HealthStatus) budget.Alert {
	return budget.Alert{
		Level:   level,
		Month:   "2026-03",
		Spent:   decimal.RequireFromString("8.50"),
		Budget:  decimal.RequireFromString("10.00"),
		Percent: 85,
	}
}

func TestTelegramSendsAlert(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"budget","username":"budget_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			sent = append(sent, string(body))
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n, err := NewTelegram("token", 42, srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), alert(models.HealthWarning)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "chat_id=42")
	assert.Contains(t, sent[0], "Cost+alert")
}

type failing struct{}

func (failing) Notify(context.Context, budget.Alert) error { return fmt.Errorf("down") }

func TestMultiJoinsErrors(t *testing.T) {
	m := Multi{NewLog(logger.Nop()), failing{}}
	err := m.Notify(context.Background(), alert(models.HealthCritical))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")

	assert.NoError(t, Multi{NewLog(logger.Nop())}.Notify(context.Background(), alert(models.HealthWarning)))
}
