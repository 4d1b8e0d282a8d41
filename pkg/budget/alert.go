package budget

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/postwright/postwright/pkg/models"
)

// Alert is raised when monthly spend crosses the alert threshold or budget.
type Alert struct {
	Level   models.HealthStatus
	Month   string
	Spent   decimal.Decimal
	Budget  decimal.Decimal
	Percent float64
}

// Text renders the alert as a short human message.
func (a Alert) Text() string {
	if a.Level == models.HealthCritical {
		return fmt.Sprintf("Budget exceeded: $%s spent in %s (budget $%s)",
			a.Spent.StringFixed(2), a.Month, a.Budget.StringFixed(2))
	}
	return fmt.Sprintf("Cost alert: $%s spent in %s (%.0f%% of $%s budget)",
		a.Spent.StringFixed(2), a.Month, a.Percent, a.Budget.StringFixed(2))
}

// Notifier delivers budget alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}
