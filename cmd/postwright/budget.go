package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/postwright/postwright/pkg/models"
)

func newBudgetCmd(configPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show budget health and remaining allowance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.policy.Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			fmt.Print(formatBudget(st))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func formatBudget(st models.BudgetStatus) string {
	rows := [][]string{
		{"Health", strings.ToUpper(string(st.Health.Status)) + ": " + st.Health.Message},
		{"Month", fmt.Sprintf("%s of %s (%.1f%%)",
			dollars(st.Summary.TotalCost, 2), dollars(st.Summary.BudgetLimit, 2), st.Summary.BudgetUsedPercent)},
		{"Remaining", dollars(st.Summary.BudgetRemaining, 2)},
		{"Today", fmt.Sprintf("%s of %s", dollars(st.Daily.Current, 2), dollars(st.Daily.Limit, 2))},
		{"Posts left", fmt.Sprintf("about %d", st.EstimatedRemaining)},
	}
	if st.Daily.Exceeded {
		rows[3][1] += " (exceeded)"
	}
	if st.Reserved.IsPositive() {
		rows = append(rows, []string{"Reserved", dollars(st.Reserved, 4)})
	}
	return renderTable([]string{"BUDGET", ""}, rows) + "\n"
}
