// Package storage implements the persistence collaborator on SQLite via
// database/sql. All queries run through a DBTX so the same code serves both
// the plain connection and an open transaction.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vandevis/internal/core"
	"vandevis/internal/services"

	_ "modernc.org/sqlite"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db  DBTX
	now func() time.Time
}

// SQLiteRepository implements services.DB.
type SQLiteRepository struct {
	queries
	conn *sql.DB
}

var _ services.DB = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		queries: queries{db: db, now: func() time.Time { return time.Now().UTC() }},
		conn:    db,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// InTx implements services.Transactor. The callback runs against queries
// bound to a single transaction; any error rolls everything back.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(services.Store) error) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	q := &queries{db: tx, now: r.now}
	if err := fn(q); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// --- scenarios ---

const scenarioColumns = "id, projet_id, nom, icone, couleur, est_principal, is_locked, ordre, updated_at"

func scanScenario(row interface{ Scan(...any) error }) (core.Scenario, error) {
	var s core.Scenario
	err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Icon, &s.Color, &s.Principal, &s.Locked, &s.Position, &s.UpdatedAt)
	return s, err
}

func (q *queries) ScenariosByProject(ctx context.Context, projectID int64) ([]core.Scenario, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+scenarioColumns+" FROM scenarios WHERE projet_id = ? ORDER BY ordre, id", projectID)
	if err != nil {
		return nil, fmt.Errorf("select scenarios: %w", err)
	}
	defer rows.Close()

	var out []core.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *queries) ScenarioByID(ctx context.Context, id int64) (*core.Scenario, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+scenarioColumns+" FROM scenarios WHERE id = ?", id)
	s, err := scanScenario(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrScenarioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select scenario: %w", err)
	}
	return &s, nil
}

func (q *queries) PrincipalScenario(ctx context.Context, projectID int64) (*core.Scenario, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+scenarioColumns+" FROM scenarios WHERE projet_id = ? AND est_principal = 1", projectID)
	s, err := scanScenario(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select principal scenario: %w", err)
	}
	return &s, nil
}

func (q *queries) InsertScenario(ctx context.Context, s *core.Scenario) error {
	s.UpdatedAt = q.now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO scenarios (projet_id, nom, icone, couleur, est_principal, is_locked, ordre, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ProjectID, s.Name, s.Icon, s.Color, s.Principal, s.Locked, s.Position, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert scenario: %w", err)
	}
	s.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scenario insert id: %w", err)
	}
	return nil
}

func (q *queries) UpdateScenario(ctx context.Context, s *core.Scenario) error {
	next := q.now()
	query := `UPDATE scenarios SET nom = ?, icone = ?, couleur = ?, est_principal = ?, is_locked = ?, ordre = ?, updated_at = ?
		 WHERE id = ?`
	args := []any{s.Name, s.Icon, s.Color, s.Principal, s.Locked, s.Position, next, s.ID}
	if !s.UpdatedAt.IsZero() {
		query += " AND updated_at = ?"
		args = append(args, s.UpdatedAt)
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update scenario: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scenario result: %w", err)
	}
	if n == 0 {
		if _, err := q.ScenarioByID(ctx, s.ID); err != nil {
			return err
		}
		return core.ErrStaleUpdate
	}
	s.UpdatedAt = next
	return nil
}

func (q *queries) DeleteScenario(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM scenarios WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrScenarioNotFound
	}
	return nil
}

// --- expenses ---

const expenseColumns = `id, scenario_id, projet_id, nom_accessoire, categorie, prix_cents, quantite,
	prix_vente_ttc_cents, fournisseur, marque, notes, est_archive, statut_livraison, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var e core.Expense
	err := row.Scan(&e.ID, &e.ScenarioID, &e.ProjectID, &e.Name, &e.Category, &e.UnitCost.Cents,
		&e.Quantity, &e.SalePrice.Cents, &e.Supplier, &e.Brand, &e.Notes, &e.Archived,
		&e.DeliveryStatus, &e.UpdatedAt)
	return e, err
}

func (q *queries) ExpensesByScenario(ctx context.Context, scenarioID int64) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE scenario_id = ? ORDER BY id", scenarioID)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) ExpenseByID(ctx context.Context, id int64) (*core.Expense, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select expense: %w", err)
	}
	return &e, nil
}

func (q *queries) InsertExpense(ctx context.Context, e *core.Expense) error {
	e.UpdatedAt = q.now()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO expenses (scenario_id, projet_id, nom_accessoire, categorie, prix_cents, quantite,
		 prix_vente_ttc_cents, fournisseur, marque, notes, est_archive, statut_livraison, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ScenarioID, e.ProjectID, e.Name, e.Category, e.UnitCost.Cents, e.Quantity,
		e.SalePrice.Cents, e.Supplier, e.Brand, e.Notes, e.Archived, string(e.DeliveryStatus), e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("expense insert id: %w", err)
	}
	return nil
}

func (q *queries) UpdateExpense(ctx context.Context, e *core.Expense) error {
	next := q.now()
	query := `UPDATE expenses SET nom_accessoire = ?, categorie = ?, prix_cents = ?, quantite = ?,
		 prix_vente_ttc_cents = ?, fournisseur = ?, marque = ?, notes = ?, est_archive = ?,
		 statut_livraison = ?, updated_at = ?
		 WHERE id = ?`
	args := []any{e.Name, e.Category, e.UnitCost.Cents, e.Quantity, e.SalePrice.Cents,
		e.Supplier, e.Brand, e.Notes, e.Archived, string(e.DeliveryStatus), next, e.ID}
	if !e.UpdatedAt.IsZero() {
		query += " AND updated_at = ?"
		args = append(args, e.UpdatedAt)
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense result: %w", err)
	}
	if n == 0 {
		if _, err := q.ExpenseByID(ctx, e.ID); err != nil {
			return err
		}
		return core.ErrStaleUpdate
	}
	e.UpdatedAt = next
	return nil
}

func (q *queries) DeleteExpense(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

func (q *queries) DeleteExpensesByScenario(ctx context.Context, scenarioID int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM expenses WHERE scenario_id = ?", scenarioID); err != nil {
		return fmt.Errorf("delete scenario expenses: %w", err)
	}
	return nil
}

func (q *queries) UpdateDeliveryStatusByScenario(ctx context.Context, scenarioID int64, status core.DeliveryStatus) error {
	if _, err := q.db.ExecContext(ctx,
		"UPDATE expenses SET statut_livraison = ?, updated_at = ? WHERE scenario_id = ?",
		string(status), q.now(), scenarioID); err != nil {
		return fmt.Errorf("update delivery statuses: %w", err)
	}
	return nil
}

// --- snapshots ---

func (q *queries) InsertSnapshot(ctx context.Context, s *core.Snapshot) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO snapshots (projet_id, scenario_id, version_numero, nom_snapshot, contenu, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ProjectID, s.ScenarioID, s.Version, s.Name, s.Content, s.Notes, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	s.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot insert id: %w", err)
	}
	return nil
}

func (q *queries) SnapshotsByProject(ctx context.Context, projectID int64) ([]core.Snapshot, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, projet_id, scenario_id, version_numero, nom_snapshot, contenu, notes, created_at
		 FROM snapshots WHERE projet_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	defer rows.Close()

	var out []core.Snapshot
	for rows.Next() {
		var s core.Snapshot
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.ScenarioID, &s.Version, &s.Name, &s.Content, &s.Notes, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *queries) SnapshotByID(ctx context.Context, id int64) (*core.Snapshot, error) {
	var s core.Snapshot
	err := q.db.QueryRowContext(ctx,
		`SELECT id, projet_id, scenario_id, version_numero, nom_snapshot, contenu, notes, created_at
		 FROM snapshots WHERE id = ?`, id).
		Scan(&s.ID, &s.ProjectID, &s.ScenarioID, &s.Version, &s.Name, &s.Content, &s.Notes, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return &s, nil
}

func (q *queries) MaxSnapshotVersion(ctx context.Context, scenarioID int64) (int, error) {
	var max int
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version_numero), 0) FROM snapshots WHERE scenario_id = ?", scenarioID).
		Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("select max snapshot version: %w", err)
	}
	return max, nil
}

// --- history ---

func (q *queries) InsertHistoryEntry(ctx context.Context, h *core.HistoryEntry) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO history_entries (projet_id, action, ancienne_depense_json, raison_changement, date_modification)
		 VALUES (?, ?, ?, ?, ?)`,
		h.ProjectID, string(h.Action), string(h.OldExpense), h.Reason, h.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	h.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("history insert id: %w", err)
	}
	return nil
}

func (q *queries) HistoryByProject(ctx context.Context, projectID int64) ([]core.HistoryEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, projet_id, action, ancienne_depense_json, raison_changement, date_modification
		 FROM history_entries WHERE projet_id = ? ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	var out []core.HistoryEntry
	for rows.Next() {
		var (
			h   core.HistoryEntry
			old string
		)
		if err := rows.Scan(&h.ID, &h.ProjectID, &h.Action, &old, &h.Reason, &h.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		h.OldExpense = []byte(old)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q *queries) ClearHistory(ctx context.Context, projectID int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM history_entries WHERE projet_id = ?", projectID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// --- projects ---

func (q *queries) Projects(ctx context.Context) ([]core.Project, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, nom, nom_client, statut_financier, date_validation_devis, date_encaissement_acompte, montant_acompte_cents
		 FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProject(row interface{ Scan(...any) error }) (core.Project, error) {
	var (
		p         core.Project
		validated sql.NullTime
		deposited sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &p.ClientName, &p.FinancialStatus, &validated, &deposited, &p.DepositAmount.Cents)
	if validated.Valid {
		t := validated.Time
		p.QuoteValidatedAt = &t
	}
	if deposited.Valid {
		t := deposited.Time
		p.DepositReceivedAt = &t
	}
	return p, err
}

func (q *queries) ProjectByID(ctx context.Context, id int64) (*core.Project, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, nom, nom_client, statut_financier, date_validation_devis, date_encaissement_acompte, montant_acompte_cents
		 FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select project: %w", err)
	}
	return &p, nil
}

func (q *queries) InsertProject(ctx context.Context, p *core.Project) error {
	if p.FinancialStatus == "" {
		p.FinancialStatus = core.StatusDraft
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO projects (nom, nom_client, statut_financier, date_validation_devis, date_encaissement_acompte, montant_acompte_cents)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.ClientName, string(p.FinancialStatus), nullableTime(p.QuoteValidatedAt), nullableTime(p.DepositReceivedAt), p.DepositAmount.Cents)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("project insert id: %w", err)
	}
	return nil
}

func (q *queries) UpdateProject(ctx context.Context, p *core.Project) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE projects SET nom = ?, nom_client = ?, statut_financier = ?, date_validation_devis = ?,
		 date_encaissement_acompte = ?, montant_acompte_cents = ?
		 WHERE id = ?`,
		p.Name, p.ClientName, string(p.FinancialStatus), nullableTime(p.QuoteValidatedAt),
		nullableTime(p.DepositReceivedAt), p.DepositAmount.Cents, p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrProjectNotFound
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// --- payments ---

func (q *queries) InsertPayment(ctx context.Context, p *core.PaymentTransaction) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO payment_transactions (projet_id, type, montant_cents, utilisateur_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ProjectID, p.Kind, p.Amount.Cents, p.UserID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("payment insert id: %w", err)
	}
	return nil
}

// PaymentsByProject returns a project's recorded payments, oldest first.
func (q *queries) PaymentsByProject(ctx context.Context, projectID int64) ([]core.PaymentTransaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, projet_id, type, montant_cents, utilisateur_id, created_at
		 FROM payment_transactions WHERE projet_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var out []core.PaymentTransaction
	for rows.Next() {
		var p core.PaymentTransaction
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Kind, &p.Amount.Cents, &p.UserID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
