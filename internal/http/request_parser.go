package http

import (
	"fmt"
	"strings"
	"time"

	"vandevis/internal/core"
)

// Request payloads use the same French wire vocabulary as the domain model.
type (
	createProjectRequest struct {
		Name       string `json:"nom"`
		ClientName string `json:"nom_client"`
	}

	createScenarioRequest struct {
		Name  string `json:"nom"`
		Icon  string `json:"icone"`
		Color string `json:"couleur"`
	}

	duplicateScenarioRequest struct {
		Name string `json:"nom"`
	}

	// expenseRequest carries expense fields plus the change reason recorded
	// when the target scenario is locked. UpdatedAt, when set on an update,
	// acts as an optimistic concurrency guard.
	expenseRequest struct {
		Name           string              `json:"nom_accessoire"`
		Category       string              `json:"categorie"`
		UnitCost       core.Money          `json:"prix"`
		Quantity       int64               `json:"quantite"`
		SalePrice      core.Money          `json:"prix_vente_ttc"`
		Supplier       string              `json:"fournisseur"`
		Brand          string              `json:"marque"`
		Notes          string              `json:"notes"`
		Archived       bool                `json:"est_archive"`
		DeliveryStatus core.DeliveryStatus `json:"statut_livraison"`
		UpdatedAt      time.Time           `json:"updated_at"`
		Reason         string              `json:"raison_changement"`
	}

	lockQuoteRequest struct {
		ScenarioID int64      `json:"scenario_id"`
		Deposit    core.Money `json:"montant_acompte"`
		Notes      string     `json:"notes"`
	}
)

func (req createProjectRequest) toProject() (core.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return core.Project{}, core.ErrEmptyName
	}
	return core.Project{
		Name:            name,
		ClientName:      strings.TrimSpace(req.ClientName),
		FinancialStatus: core.StatusDraft,
	}, nil
}

func (req expenseRequest) toExpense() (core.Expense, error) {
	status := req.DeliveryStatus
	if status == "" {
		status = core.DeliveryPending
	}
	if !status.Valid() {
		return core.Expense{}, fmt.Errorf("%w: unknown statut_livraison %q", errBadRequest, req.DeliveryStatus)
	}
	return core.Expense{
		Name:           strings.TrimSpace(req.Name),
		Category:       strings.TrimSpace(req.Category),
		UnitCost:       req.UnitCost,
		Quantity:       req.Quantity,
		SalePrice:      req.SalePrice,
		Supplier:       strings.TrimSpace(req.Supplier),
		Brand:          strings.TrimSpace(req.Brand),
		Notes:          req.Notes,
		Archived:       req.Archived,
		DeliveryStatus: status,
		UpdatedAt:      req.UpdatedAt,
	}, nil
}
