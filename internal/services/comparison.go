package services

import (
	"vandevis/internal/core"
)

// BuildComparison builds the cross-scenario diff table. Expenses are grouped
// by the composite key category + "_" + name (exact match); a scenario with
// no expense for a key gets a nil cell, never a zero row.
//
// The reference scenario is the one flagged principal. Every other
// scenario's per-row and aggregate totals are classified against it: lower
// is favorable, higher unfavorable, equal neutral with the delta suppressed.
// Without a principal scenario the table is still produced, just without
// classifications or deltas.
//
// Category order and row order within a category follow first appearance in
// the input, so the table is deterministic for a given input ordering.
func BuildComparison(scenarios []core.Scenario, expensesByScenario map[int64][]core.Expense) core.ComparisonTable {
	table := core.ComparisonTable{
		Scenarios: scenarios,
		Totals:    make(map[int64]core.ComparisonTotal, len(scenarios)),
	}

	var reference *core.Scenario
	for i := range scenarios {
		if scenarios[i].Principal {
			reference = &scenarios[i]
			break
		}
	}
	if reference != nil {
		table.ReferenceID = reference.ID
	}

	type rowSlot struct {
		categoryIdx int
		rowIdx      int
	}
	rowIndex := make(map[string]rowSlot)
	categoryIndex := make(map[string]int)

	for _, scenario := range scenarios {
		for _, e := range expensesByScenario[scenario.ID] {
			if e.Archived {
				continue
			}
			key := e.Category + "_" + e.Name

			slot, seen := rowIndex[key]
			if !seen {
				catIdx, catSeen := categoryIndex[e.Category]
				if !catSeen {
					catIdx = len(table.Categories)
					categoryIndex[e.Category] = catIdx
					table.Categories = append(table.Categories, core.ComparisonCategory{Name: e.Category})
				}
				cat := &table.Categories[catIdx]
				slot = rowSlot{categoryIdx: catIdx, rowIdx: len(cat.Rows)}
				cat.Rows = append(cat.Rows, core.ComparisonRow{
					Key:      key,
					Category: e.Category,
					Name:     e.Name,
					Cells:    make(map[int64]*core.ComparisonCell, len(scenarios)),
				})
				rowIndex[key] = slot
			}

			row := &table.Categories[slot.categoryIdx].Rows[slot.rowIdx]
			cell := row.Cells[scenario.ID]
			if cell == nil {
				cell = &core.ComparisonCell{
					UnitCost: e.UnitCost,
					Brand:    e.Brand,
					Details:  e.Notes,
				}
				row.Cells[scenario.ID] = cell
			}
			// Duplicate keys within one scenario accumulate into one cell.
			cell.Quantity += e.Quantity
			cell.Total = cell.Total.Add(e.UnitCost.Mul(e.Quantity))
		}
	}

	for _, scenario := range scenarios {
		total := core.ComparisonTotal{}
		for ci := range table.Categories {
			for ri := range table.Categories[ci].Rows {
				if cell := table.Categories[ci].Rows[ri].Cells[scenario.ID]; cell != nil {
					total.Total = total.Total.Add(cell.Total)
				}
			}
		}
		table.Totals[scenario.ID] = total
	}

	if reference == nil {
		return table
	}

	for ci := range table.Categories {
		for ri := range table.Categories[ci].Rows {
			row := &table.Categories[ci].Rows[ri]
			refCell := row.Cells[reference.ID]
			if refCell == nil {
				continue
			}
			for _, scenario := range scenarios {
				if scenario.ID == reference.ID {
					continue
				}
				cell := row.Cells[scenario.ID]
				if cell == nil {
					continue
				}
				cell.Classification, cell.Delta = classify(cell.Total, refCell.Total)
			}
		}
	}

	refTotal := table.Totals[reference.ID]
	for _, scenario := range scenarios {
		if scenario.ID == reference.ID {
			continue
		}
		total := table.Totals[scenario.ID]
		total.Classification, total.Delta = classify(total.Total, refTotal.Total)
		table.Totals[scenario.ID] = total
	}

	return table
}

// classify compares a scenario total with the reference total. The delta is
// nil when the totals are equal so equal rows render without delta text.
func classify(total, reference core.Money) (core.Classification, *core.Money) {
	switch {
	case total.Cents < reference.Cents:
		delta := total.Sub(reference)
		return core.ClassFavorable, &delta
	case total.Cents > reference.Cents:
		delta := total.Sub(reference)
		return core.ClassUnfavorable, &delta
	default:
		return core.ClassNeutral, nil
	}
}
