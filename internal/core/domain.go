package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	// Delivery statuses for an expense line, in order of progression.
	DeliveryPending  DeliveryStatus = "en_attente"
	DeliveryOrdered  DeliveryStatus = "commande"
	DeliveryShipped  DeliveryStatus = "expedie"
	DeliveryReceived DeliveryStatus = "livre"

	// Financial statuses for a project.
	StatusDraft         FinancialStatus = "brouillon"
	StatusQuoteAccepted FinancialStatus = "devis_accepte"
	StatusInProgress    FinancialStatus = "en_cours"
	StatusDone          FinancialStatus = "termine"

	// Audit actions recorded when a locked scenario's expense is mutated.
	ActionCreate  AuditAction = "ajout"
	ActionUpdate  AuditAction = "modification"
	ActionDelete  AuditAction = "suppression"
	ActionReplace AuditAction = "remplacement"

	// PaymentDeposit is the payment kind recorded when a quote is locked.
	PaymentDeposit = "acompte"
)

type (
	DeliveryStatus  string
	FinancialStatus string
	AuditAction     string

	// Scenario is a named cost-configuration variant of a project's
	// expense list. Exactly one scenario per project carries Principal.
	Scenario struct {
		ID        int64     `json:"id"`
		ProjectID int64     `json:"projet_id"`
		Name      string    `json:"nom"`
		Icon      string    `json:"icone"`
		Color     string    `json:"couleur"`
		Principal bool      `json:"est_principal"`
		Locked    bool      `json:"is_locked"`
		Position  int       `json:"ordre"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// Expense is a single accessory line owned by exactly one scenario.
	Expense struct {
		ID             int64          `json:"id"`
		ScenarioID     int64          `json:"scenario_id"`
		ProjectID      int64          `json:"projet_id"`
		Name           string         `json:"nom_accessoire"`
		Category       string         `json:"categorie"`
		UnitCost       Money          `json:"prix"`
		Quantity       int64          `json:"quantite"`
		SalePrice      Money          `json:"prix_vente_ttc"`
		Supplier       string         `json:"fournisseur"`
		Brand          string         `json:"marque"`
		Notes          string         `json:"notes"`
		Archived       bool           `json:"est_archive"`
		DeliveryStatus DeliveryStatus `json:"statut_livraison"`
		UpdatedAt      time.Time      `json:"updated_at"`
	}

	// Project carries the financial state driven by the quote lock.
	Project struct {
		ID                int64           `json:"id"`
		Name              string          `json:"nom"`
		ClientName        string          `json:"nom_client"`
		FinancialStatus   FinancialStatus `json:"statut_financier"`
		QuoteValidatedAt  *time.Time      `json:"date_validation_devis"`
		DepositReceivedAt *time.Time      `json:"date_encaissement_acompte"`
		DepositAmount     Money           `json:"montant_acompte"`
	}

	// Snapshot is the immutable record produced when a quote is locked.
	Snapshot struct {
		ID         int64     `json:"id"`
		ProjectID  int64     `json:"projet_id"`
		ScenarioID int64     `json:"scenario_id"`
		Version    int       `json:"version_numero"`
		Name       string    `json:"nom_snapshot"`
		Content    []byte    `json:"-"`
		Notes      string    `json:"notes"`
		CreatedAt  time.Time `json:"created_at"`
	}

	// SnapshotContent is the payload serialized into Snapshot.Content.
	SnapshotContent struct {
		Project       Project        `json:"projet"`
		Scenario      Scenario       `json:"scenario"`
		Expenses      []Expense      `json:"depenses"`
		Totals        Totals         `json:"totaux"`
		Energy        *EnergyBalance `json:"bilan_energetique,omitempty"`
		CategoryCount int            `json:"nb_categories"`
		ExpenseCount  int            `json:"nb_depenses"`
		Deposit       Money          `json:"montant_acompte"`
		LockedAt      time.Time      `json:"date_verrouillage"`
	}

	// HistoryEntry is an append-only audit record of a post-lock mutation.
	HistoryEntry struct {
		ID         int64           `json:"id"`
		ProjectID  int64           `json:"projet_id"`
		Action     AuditAction     `json:"action"`
		OldExpense json.RawMessage `json:"ancienne_depense_json"`
		Reason     string          `json:"raison_changement,omitempty"`
		RecordedAt time.Time       `json:"date_modification"`
	}

	// PaymentTransaction records a payment against a project, attributed
	// to the acting user supplied by the auth collaborator.
	PaymentTransaction struct {
		ID        int64     `json:"id"`
		ProjectID int64     `json:"projet_id"`
		Kind      string    `json:"type"`
		Amount    Money     `json:"montant"`
		UserID    string    `json:"utilisateur_id"`
		CreatedAt time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDeposit    = errors.New("deposit amount must be positive")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrEmptyName         = errors.New("empty name")
	ErrProjectNotFound   = errors.New("project not found")
	ErrScenarioNotFound  = errors.New("scenario not found")
	ErrExpenseNotFound   = errors.New("expense not found")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrNoPrincipal       = errors.New("project has no principal scenario")
	ErrScenarioMismatch  = errors.New("scenario does not belong to the project")
	ErrNotPrincipal      = errors.New("scenario is not the principal scenario")
	ErrPrincipalDelete   = errors.New("principal scenario cannot be deleted")
	ErrScenarioLocked    = errors.New("scenario is already locked")
	ErrScenarioNotLocked = errors.New("scenario is not locked")
	ErrStaleUpdate       = errors.New("record was modified by another session")
)

// Valid reports whether the delivery status is one of the known states.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryOrdered, DeliveryShipped, DeliveryReceived:
		return true
	}
	return false
}

// Valid reports whether the financial status is one of the known states.
func (s FinancialStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusQuoteAccepted, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Valid reports whether the audit action is one of the known actions.
func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionReplace:
		return true
	}
	return false
}

func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if len(s.Name) > 100 {
		return errors.New("scenario name too long (max 100 characters)")
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("expense name too long (max 200 characters)")
	}
	if e.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if e.UnitCost.Cents < 0 || e.SalePrice.Cents < 0 {
		return ErrInvalidAmount
	}
	if e.DeliveryStatus != "" && !e.DeliveryStatus.Valid() {
		return errors.New("invalid delivery status")
	}
	return nil
}

// Encode serializes the snapshot payload for storage.
func (c SnapshotContent) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// DecodeSnapshotContent deserializes a stored snapshot payload.
func DecodeSnapshotContent(data []byte) (SnapshotContent, error) {
	var c SnapshotContent
	err := json.Unmarshal(data, &c)
	return c, err
}
