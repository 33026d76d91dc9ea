// Package memory provides an in-memory persistence backend. It backs the
// development/test data backend and the service test suites; rollback is
// implemented by restoring a state copy, which mirrors the transactional
// contract of the SQLite repository under the single-editor model.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vandevis/internal/core"
	"vandevis/internal/services"
)

type Store struct {
	mu        sync.Mutex
	seq       int64
	scenarios map[int64]core.Scenario
	expenses  map[int64]core.Expense
	snapshots map[int64]core.Snapshot
	projects  map[int64]core.Project
	history   []core.HistoryEntry
	payments  []core.PaymentTransaction
	now       func() time.Time
}

var _ services.DB = (*Store)(nil)

func New() *Store {
	return &Store{
		scenarios: make(map[int64]core.Scenario),
		expenses:  make(map[int64]core.Expense),
		snapshots: make(map[int64]core.Snapshot),
		projects:  make(map[int64]core.Project),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// InTx implements services.Transactor. The store assumes a single active
// editor, so a transaction is a state copy restored on failure.
func (s *Store) InTx(ctx context.Context, fn func(services.Store) error) error {
	s.mu.Lock()
	backup := s.copyState()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restoreState(backup)
		s.mu.Unlock()
		return err
	}
	return nil
}

type state struct {
	seq       int64
	scenarios map[int64]core.Scenario
	expenses  map[int64]core.Expense
	snapshots map[int64]core.Snapshot
	projects  map[int64]core.Project
	history   []core.HistoryEntry
	payments  []core.PaymentTransaction
}

func (s *Store) copyState() state {
	st := state{
		seq:       s.seq,
		scenarios: make(map[int64]core.Scenario, len(s.scenarios)),
		expenses:  make(map[int64]core.Expense, len(s.expenses)),
		snapshots: make(map[int64]core.Snapshot, len(s.snapshots)),
		projects:  make(map[int64]core.Project, len(s.projects)),
		history:   append([]core.HistoryEntry(nil), s.history...),
		payments:  append([]core.PaymentTransaction(nil), s.payments...),
	}
	for id, v := range s.scenarios {
		st.scenarios[id] = v
	}
	for id, v := range s.expenses {
		st.expenses[id] = v
	}
	for id, v := range s.snapshots {
		st.snapshots[id] = v
	}
	for id, v := range s.projects {
		st.projects[id] = v
	}
	return st
}

func (s *Store) restoreState(st state) {
	s.seq = st.seq
	s.scenarios = st.scenarios
	s.expenses = st.expenses
	s.snapshots = st.snapshots
	s.projects = st.projects
	s.history = st.history
	s.payments = st.payments
}

// --- scenarios ---

func (s *Store) ScenariosByProject(_ context.Context, projectID int64) ([]core.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Scenario
	for _, sc := range s.scenarios {
		if sc.ProjectID == projectID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ScenarioByID(_ context.Context, id int64) (*core.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scenarios[id]
	if !ok {
		return nil, core.ErrScenarioNotFound
	}
	return &sc, nil
}

func (s *Store) PrincipalScenario(_ context.Context, projectID int64) (*core.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scenarios {
		if sc.ProjectID == projectID && sc.Principal {
			out := sc
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertScenario(_ context.Context, sc *core.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc.ID = s.nextID()
	sc.UpdatedAt = s.now()
	s.scenarios[sc.ID] = *sc
	return nil
}

func (s *Store) UpdateScenario(_ context.Context, sc *core.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.scenarios[sc.ID]
	if !ok {
		return core.ErrScenarioNotFound
	}
	if !sc.UpdatedAt.IsZero() && !sc.UpdatedAt.Equal(stored.UpdatedAt) {
		return core.ErrStaleUpdate
	}
	sc.UpdatedAt = s.now()
	s.scenarios[sc.ID] = *sc
	return nil
}

func (s *Store) DeleteScenario(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenarios[id]; !ok {
		return core.ErrScenarioNotFound
	}
	delete(s.scenarios, id)
	return nil
}

// --- expenses ---

func (s *Store) ExpensesByScenario(_ context.Context, scenarioID int64) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.ScenarioID == scenarioID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ExpenseByID(_ context.Context, id int64) (*core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return nil, core.ErrExpenseNotFound
	}
	return &e, nil
}

func (s *Store) InsertExpense(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID()
	e.UpdatedAt = s.now()
	s.expenses[e.ID] = *e
	return nil
}

func (s *Store) UpdateExpense(_ context.Context, e *core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.expenses[e.ID]
	if !ok {
		return core.ErrExpenseNotFound
	}
	if !e.UpdatedAt.IsZero() && !e.UpdatedAt.Equal(stored.UpdatedAt) {
		return core.ErrStaleUpdate
	}
	e.UpdatedAt = s.now()
	s.expenses[e.ID] = *e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return core.ErrExpenseNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) DeleteExpensesByScenario(_ context.Context, scenarioID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.expenses {
		if e.ScenarioID == scenarioID {
			delete(s.expenses, id)
		}
	}
	return nil
}

func (s *Store) UpdateDeliveryStatusByScenario(_ context.Context, scenarioID int64, status core.DeliveryStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.expenses {
		if e.ScenarioID == scenarioID {
			e.DeliveryStatus = status
			e.UpdatedAt = s.now()
			s.expenses[id] = e
		}
	}
	return nil
}

// --- snapshots ---

func (s *Store) InsertSnapshot(_ context.Context, snap *core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ID = s.nextID()
	stored := *snap
	stored.Content = append([]byte(nil), snap.Content...)
	s.snapshots[snap.ID] = stored
	return nil
}

func (s *Store) SnapshotsByProject(_ context.Context, projectID int64) ([]core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Snapshot
	for _, snap := range s.snapshots {
		if snap.ProjectID == projectID {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SnapshotByID(_ context.Context, id int64) (*core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, core.ErrSnapshotNotFound
	}
	return &snap, nil
}

func (s *Store) MaxSnapshotVersion(_ context.Context, scenarioID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, snap := range s.snapshots {
		if snap.ScenarioID == scenarioID && snap.Version > max {
			max = snap.Version
		}
	}
	return max, nil
}

// --- history ---

func (s *Store) InsertHistoryEntry(_ context.Context, h *core.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = s.nextID()
	stored := *h
	stored.OldExpense = append([]byte(nil), h.OldExpense...)
	s.history = append(s.history, stored)
	return nil
}

func (s *Store) HistoryByProject(_ context.Context, projectID int64) ([]core.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.HistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ProjectID == projectID {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

func (s *Store) ClearHistory(_ context.Context, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.history[:0]
	for _, h := range s.history {
		if h.ProjectID != projectID {
			kept = append(kept, h)
		}
	}
	s.history = kept
	return nil
}

// --- projects ---

func (s *Store) Projects(_ context.Context) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Project
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InsertProject(_ context.Context, p *core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID()
	if p.FinancialStatus == "" {
		p.FinancialStatus = core.StatusDraft
	}
	s.projects[p.ID] = *p
	return nil
}

func (s *Store) ProjectByID(_ context.Context, id int64) (*core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, core.ErrProjectNotFound
	}
	return &p, nil
}

func (s *Store) UpdateProject(_ context.Context, p *core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; !ok {
		return core.ErrProjectNotFound
	}
	s.projects[p.ID] = *p
	return nil
}

// SeedProject inserts a project directly, for bootstrapping dev and test
// environments.
func (s *Store) SeedProject(p core.Project) core.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID()
	} else if p.ID > s.seq {
		s.seq = p.ID
	}
	if p.FinancialStatus == "" {
		p.FinancialStatus = core.StatusDraft
	}
	s.projects[p.ID] = p
	return p
}

// Payments returns recorded payment transactions for a project.
func (s *Store) Payments(projectID int64) []core.PaymentTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.PaymentTransaction
	for _, p := range s.payments {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	return out
}

// PaymentsByProject lists recorded payment transactions in insertion order.
func (s *Store) PaymentsByProject(_ context.Context, projectID int64) ([]core.PaymentTransaction, error) {
	return s.Payments(projectID), nil
}

func (s *Store) InsertPayment(_ context.Context, p *core.PaymentTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID()
	s.payments = append(s.payments, *p)
	return nil
}
