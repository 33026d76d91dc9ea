package services

import (
	"math"

	"vandevis/internal/core"
)

// DefaultExtractor is the heuristic used when callers do not supply their
// own EnergyExtractor.
var DefaultExtractor EnergyExtractor = HeuristicExtractor{}

// ComputeTotals derives the financial aggregate of an expense list.
// Archived expenses are excluded. The sums are order-independent, and a
// zero purchase total yields a zero margin rather than a division error.
func ComputeTotals(expenses []core.Expense) core.Totals {
	var totals core.Totals
	for _, e := range expenses {
		if e.Archived {
			continue
		}
		totals.PurchaseTotal = totals.PurchaseTotal.Add(e.UnitCost.Mul(e.Quantity))
		totals.SaleTotal = totals.SaleTotal.Add(e.SalePrice.Mul(e.Quantity))
	}
	if totals.PurchaseTotal.Cents != 0 {
		margin := float64(totals.SaleTotal.Cents-totals.PurchaseTotal.Cents) / float64(totals.PurchaseTotal.Cents) * 100
		totals.MarginPercent = math.Round(margin*100) / 100
	}
	return totals
}

// ComputeEnergyBalance derives the solar-production versus battery-storage
// estimate from an expense list. Archived expenses are excluded. It returns
// nil when no production and no storage was recognized; callers must not
// render an energy section in that case.
//
// Storage watt-hours assume a 12V system. Autonomy divides storage by five
// peak production hours per day and is rounded to one decimal.
func ComputeEnergyBalance(expenses []core.Expense, extractor EnergyExtractor) *core.EnergyBalance {
	if extractor == nil {
		extractor = DefaultExtractor
	}

	var balance core.EnergyBalance
	for _, e := range expenses {
		if e.Archived {
			continue
		}
		if watts, ok := extractor.ProductionWatts(e.Name, e.Category); ok {
			balance.ProductionW += watts * e.Quantity
		}
		if ampHours, ok := extractor.StorageAmpHours(e.Name, e.Category); ok {
			balance.StorageAh += ampHours * e.Quantity
		}
	}

	if balance.ProductionW == 0 && balance.StorageAh == 0 {
		return nil
	}

	balance.StorageWh = balance.StorageAh * 12
	if balance.ProductionW > 0 && balance.StorageWh > 0 {
		days := float64(balance.StorageWh) / (float64(balance.ProductionW) * 5)
		balance.AutonomyDays = math.Round(days*10) / 10
	}
	return &balance
}

// CountCategories returns the number of distinct non-empty categories among
// active expenses. Used when assembling a snapshot.
func CountCategories(expenses []core.Expense) int {
	seen := make(map[string]struct{})
	for _, e := range expenses {
		if e.Archived || e.Category == "" {
			continue
		}
		seen[e.Category] = struct{}{}
	}
	return len(seen)
}

// ActiveExpenses filters out archived expenses, preserving order.
func ActiveExpenses(expenses []core.Expense) []core.Expense {
	active := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if !e.Archived {
			active = append(active, e)
		}
	}
	return active
}
