package core

const (
	// Classifications of a scenario's cost relative to the reference
	// (principal) scenario: lower is favorable, higher is unfavorable.
	ClassFavorable   Classification = "favorable"
	ClassUnfavorable Classification = "defavorable"
	ClassNeutral     Classification = "neutre"
)

type (
	Classification string

	// Totals is the derived financial aggregate of a scenario's active
	// (non-archived) expenses. It is never persisted.
	Totals struct {
		PurchaseTotal Money   `json:"total_achat"`
		SaleTotal     Money   `json:"total_vente"`
		MarginPercent float64 `json:"marge_pourcent"`
	}

	// EnergyBalance is the derived solar-production versus battery-storage
	// autonomy estimate. A nil *EnergyBalance means no energy-related
	// expenses were recognized and no energy section should be rendered.
	EnergyBalance struct {
		ProductionW int64   `json:"production_w"`
		StorageAh   int64   `json:"stockage_ah"`
		StorageWh   int64   `json:"stockage_wh"`
		AutonomyDays float64 `json:"autonomie_jours"`
	}

	// ComparisonCell is one scenario's data for a comparison row. A nil
	// cell renders as "no data", never as a zero row.
	ComparisonCell struct {
		UnitCost       Money           `json:"prix"`
		Quantity       int64           `json:"quantite"`
		Total          Money           `json:"total"`
		Brand          string          `json:"marque,omitempty"`
		Details        string          `json:"details,omitempty"`
		Classification Classification  `json:"classement,omitempty"`
		Delta          *Money          `json:"ecart,omitempty"`
	}

	// ComparisonRow is a single item key across all scenarios.
	ComparisonRow struct {
		Key      string                    `json:"cle"`
		Category string                    `json:"categorie"`
		Name     string                    `json:"nom_accessoire"`
		Cells    map[int64]*ComparisonCell `json:"par_scenario"`
	}

	// ComparisonCategory groups rows under one category, in the order the
	// category was first seen in the input.
	ComparisonCategory struct {
		Name string          `json:"nom"`
		Rows []ComparisonRow `json:"lignes"`
	}

	// ComparisonTotal is a scenario's aggregate across all rows it has
	// data for, classified against the reference scenario's aggregate.
	ComparisonTotal struct {
		Total          Money          `json:"total"`
		Classification Classification `json:"classement,omitempty"`
		Delta          *Money         `json:"ecart,omitempty"`
	}

	// ComparisonTable is the full cross-scenario diff. ReferenceID is zero
	// when no scenario is flagged principal; the table is then produced
	// without classifications or deltas.
	ComparisonTable struct {
		ReferenceID int64                     `json:"scenario_reference_id,omitempty"`
		Scenarios   []Scenario                `json:"scenarios"`
		Categories  []ComparisonCategory      `json:"categories"`
		Totals      map[int64]ComparisonTotal `json:"totaux_par_scenario"`
	}
)
