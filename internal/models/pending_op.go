package models

import "encoding/json"

// OperationKind identifies a queued offline mutation.
type OperationKind string

const (
	OperationAdd    OperationKind = "ADD"
	OperationEdit   OperationKind = "EDIT"
	OperationDelete OperationKind = "DELETE"
)

// MaxRetries is the replay ceiling. An operation that fails this many
// times is dropped from the queue with a warning and never replayed again.
const MaxRetries = 3

// PendingOperation represents a mutation performed while offline, queued
// for replay once connectivity returns. For ADD, TargetID holds the
// placeholder id so the replayed server record can replace it.
type PendingOperation struct {
	ID         UUID            `db:"id" json:"id"`
	Kind       OperationKind   `db:"kind" json:"kind"`
	TargetID   int64           `db:"target_id" json:"target_id,omitempty"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	RetryCount int             `db:"retry_count" json:"retry_count"`
	CreatedAt  int64           `db:"created_at" json:"created_at"`
}

// TableName returns the table name for PendingOperation.
func (PendingOperation) TableName() string {
	return "pending_operations"
}

// DecodePayload unmarshals the operation payload into a RecipePayload.
func (op *PendingOperation) DecodePayload() (RecipePayload, error) {
	var p RecipePayload
	if len(op.Payload) == 0 {
		return p, nil
	}
	err := json.Unmarshal(op.Payload, &p)
	return p, err
}
