package services

import (
	"testing"

	"vandevis/internal/core"
)

func expense(name, category string, unitCents, saleCents, qty int64) core.Expense {
	return core.Expense{
		Name:      name,
		Category:  category,
		UnitCost:  core.Money{Cents: unitCents},
		SalePrice: core.Money{Cents: saleCents},
		Quantity:  qty,
	}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name         string
		expenses     []core.Expense
		wantPurchase int64
		wantSale     int64
		wantMargin   float64
	}{
		{
			name: "sums unit price times quantity",
			expenses: []core.Expense{
				expense("Frigo a compression", "Froid", 40000, 50000, 1),
				expense("Panneau solaire 150W", "Electricite", 20000, 25000, 2),
			},
			wantPurchase: 80000,
			wantSale:     100000,
			wantMargin:   25,
		},
		{
			name: "archived expenses excluded",
			expenses: []core.Expense{
				expense("Frigo a compression", "Froid", 40000, 50000, 1),
				func() core.Expense {
					e := expense("Ancien frigo", "Froid", 99900, 99900, 1)
					e.Archived = true
					return e
				}(),
			},
			wantPurchase: 40000,
			wantSale:     50000,
			wantMargin:   25,
		},
		{
			name:         "empty list",
			expenses:     nil,
			wantPurchase: 0,
			wantSale:     0,
			wantMargin:   0,
		},
		{
			name: "zero purchase total yields zero margin",
			expenses: []core.Expense{
				expense("Accessoire offert", "Divers", 0, 5000, 3),
			},
			wantPurchase: 0,
			wantSale:     15000,
			wantMargin:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.expenses)
			if got.PurchaseTotal.Cents != tt.wantPurchase {
				t.Errorf("PurchaseTotal = %d, want %d", got.PurchaseTotal.Cents, tt.wantPurchase)
			}
			if got.SaleTotal.Cents != tt.wantSale {
				t.Errorf("SaleTotal = %d, want %d", got.SaleTotal.Cents, tt.wantSale)
			}
			if got.MarginPercent != tt.wantMargin {
				t.Errorf("MarginPercent = %v, want %v", got.MarginPercent, tt.wantMargin)
			}
		})
	}
}

func TestComputeTotalsOrderIndependent(t *testing.T) {
	a := expense("Panneau solaire 150W", "Electricite", 20000, 25000, 2)
	b := expense("Batterie lithium 100Ah", "Electricite", 80000, 95000, 1)
	c := expense("Frigo a compression", "Froid", 40000, 50000, 1)

	orderings := [][]core.Expense{
		{a, b, c},
		{c, b, a},
		{b, a, c},
	}
	first := ComputeTotals(orderings[0])
	for i, expenses := range orderings[1:] {
		got := ComputeTotals(expenses)
		if got != first {
			t.Errorf("ordering %d: totals = %+v, want %+v", i+1, got, first)
		}
	}
}

func TestComputeEnergyBalance(t *testing.T) {
	t.Run("solar panel production", func(t *testing.T) {
		expenses := []core.Expense{
			expense("Panneau solaire 150W", "Electricite", 0, 0, 2),
		}
		got := ComputeEnergyBalance(expenses, nil)
		if got == nil {
			t.Fatal("expected a balance, got nil")
		}
		if got.ProductionW != 300 {
			t.Errorf("ProductionW = %d, want 300", got.ProductionW)
		}
	})

	t.Run("battery storage with autonomy", func(t *testing.T) {
		expenses := []core.Expense{
			expense("Panneau solaire 150W", "Electricite", 0, 0, 2),
			expense("Batterie lithium 100Ah", "Electricite", 0, 0, 1),
		}
		got := ComputeEnergyBalance(expenses, nil)
		if got == nil {
			t.Fatal("expected a balance, got nil")
		}
		if got.StorageAh != 100 {
			t.Errorf("StorageAh = %d, want 100", got.StorageAh)
		}
		if got.StorageWh != 1200 {
			t.Errorf("StorageWh = %d, want 1200", got.StorageWh)
		}
		if got.AutonomyDays != 0.8 {
			t.Errorf("AutonomyDays = %v, want 0.8", got.AutonomyDays)
		}
	})

	t.Run("no energy expenses yields nil", func(t *testing.T) {
		expenses := []core.Expense{
			expense("Frigo a compression", "Froid", 40000, 50000, 1),
		}
		if got := ComputeEnergyBalance(expenses, nil); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("archived energy expenses excluded", func(t *testing.T) {
		e := expense("Panneau solaire 150W", "Electricite", 0, 0, 2)
		e.Archived = true
		if got := ComputeEnergyBalance([]core.Expense{e}, nil); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("storage only has no autonomy", func(t *testing.T) {
		expenses := []core.Expense{
			expense("Batterie AGM 120Ah", "Electricite", 0, 0, 2),
		}
		got := ComputeEnergyBalance(expenses, nil)
		if got == nil {
			t.Fatal("expected a balance, got nil")
		}
		if got.StorageAh != 240 || got.AutonomyDays != 0 {
			t.Errorf("got %+v, want StorageAh=240 AutonomyDays=0", got)
		}
	})
}

func TestCountCategories(t *testing.T) {
	expenses := []core.Expense{
		expense("Panneau solaire 150W", "Electricite", 0, 0, 1),
		expense("Batterie lithium 100Ah", "Electricite", 0, 0, 1),
		expense("Frigo a compression", "Froid", 0, 0, 1),
	}
	if got := CountCategories(expenses); got != 2 {
		t.Errorf("CountCategories = %d, want 2", got)
	}
}
