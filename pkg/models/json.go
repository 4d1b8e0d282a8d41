package models

import "github.com/shopspring/decimal"

func init() {
	// Costs travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}
