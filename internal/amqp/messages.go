package amqp

import (
	"encoding/json"
	"time"

	"vandevis/internal/core"
)

// QuoteLockedMessage announces a committed quote lock. It carries identifiers
// only; the worker re-reads the snapshot from the database so the payload can
// never go stale in the queue.
type QuoteLockedMessage struct {
	ProjectID  int64     `json:"projet_id"`
	ScenarioID int64     `json:"scenario_id"`
	SnapshotID int64     `json:"snapshot_id"`
	Version    int       `json:"version_numero"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewQuoteLockedMessage(projectID, scenarioID, snapshotID int64, version int) *QuoteLockedMessage {
	return &QuoteLockedMessage{
		ProjectID:  projectID,
		ScenarioID: scenarioID,
		SnapshotID: snapshotID,
		Version:    version,
		Timestamp:  time.Now(),
	}
}

func (m *QuoteLockedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func QuoteLockedMessageFromJSON(data []byte) (*QuoteLockedMessage, error) {
	var msg QuoteLockedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ExpenseAuditMessage announces a post-lock expense mutation that was recorded
// in the history log.
type ExpenseAuditMessage struct {
	ProjectID int64            `json:"projet_id"`
	Action    core.AuditAction `json:"action"`
	ExpenseID int64            `json:"depense_id"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewExpenseAuditMessage(projectID int64, action core.AuditAction, expenseID int64) *ExpenseAuditMessage {
	return &ExpenseAuditMessage{
		ProjectID: projectID,
		Action:    action,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseAuditMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseAuditMessageFromJSON(data []byte) (*ExpenseAuditMessage, error) {
	var msg ExpenseAuditMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
