package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestScenarioValidate(t *testing.T) {
	if err := (Scenario{Name: "Configuration solaire"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Scenario{Name: "   "}).Validate(); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Name:     "Panneau solaire 150W",
		Category: "Electricite",
		UnitCost: Money{Cents: 10000},
		Quantity: 2,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Name: "", Quantity: 1},
		{Name: "a", Quantity: 0},
		{Name: "a", Quantity: 1, UnitCost: Money{Cents: -1}},
		{Name: "a", Quantity: 1, DeliveryStatus: "inconnu"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEnumValidity(t *testing.T) {
	for _, s := range []DeliveryStatus{DeliveryPending, DeliveryOrdered, DeliveryShipped, DeliveryReceived} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if DeliveryStatus("autre").Valid() {
		t.Error("unknown delivery status should be invalid")
	}
	for _, a := range []AuditAction{ActionCreate, ActionUpdate, ActionDelete, ActionReplace} {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if !StatusQuoteAccepted.Valid() || FinancialStatus("x").Valid() {
		t.Error("financial status validity broken")
	}
}

func TestSnapshotContentRoundTrip(t *testing.T) {
	content := SnapshotContent{
		Project:  Project{ID: 7, Name: "Fourgon L2H2", FinancialStatus: StatusQuoteAccepted},
		Scenario: Scenario{ID: 3, ProjectID: 7, Name: "Principal", Principal: true},
		Expenses: []Expense{
			{ID: 1, Name: "Batterie lithium 100Ah", Quantity: 1, UnitCost: Money{Cents: 80000}},
		},
		Totals:        Totals{PurchaseTotal: Money{Cents: 80000}, SaleTotal: Money{Cents: 100000}, MarginPercent: 25},
		CategoryCount: 1,
		ExpenseCount:  1,
		Deposit:       Money{Cents: 50000},
		LockedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	data, err := content.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeSnapshotContent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Project.Name != content.Project.Name {
		t.Errorf("project name = %q, want %q", back.Project.Name, content.Project.Name)
	}
	if back.Deposit.Cents != 50000 {
		t.Errorf("deposit = %d, want 50000", back.Deposit.Cents)
	}
	if len(back.Expenses) != 1 || back.Expenses[0].Name != "Batterie lithium 100Ah" {
		t.Errorf("expenses not preserved: %+v", back.Expenses)
	}
}

func TestExpenseJSONFieldNames(t *testing.T) {
	e := Expense{Name: "Convertisseur 2000W", Category: "Electricite", Quantity: 1}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, field := range []string{"nom_accessoire", "categorie", "prix", "quantite", "prix_vente_ttc", "est_archive", "statut_livraison"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing wire field %q", field)
		}
	}
}
