// Package store implements the durable local mutation store: the
// last-known recipe list, the queue of offline mutations awaiting replay,
// and the persisted credential pair. Pure storage, no network calls.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/brewlog/brewsync/internal/db"
	"github.com/brewlog/brewsync/internal/errors"
	"github.com/brewlog/brewsync/internal/logging"
	"github.com/brewlog/brewsync/internal/models"
	"github.com/brewlog/brewsync/internal/uuid"
)

// Store persists the local cache. All writes are full overwrites inside a
// transaction so an interrupted write never leaves a partial queue.
type Store struct {
	db *sql.DB
}

// New creates a Store on an already-migrated database.
func New(database *db.DB) *Store {
	return &Store{db: database.DB}
}

// Open opens the database under dataDir, runs migrations, and returns a
// ready Store.
func Open(dataDir string) (*Store, *db.DB, error) {
	database, err := db.Open(dataDir)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrStore, "failed to open local database", err)
	}

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		database.Close()
		return nil, nil, errors.Wrap(errors.ErrStore, "failed to initialize migrations", err)
	}
	if err := migrator.Up(); err != nil {
		database.Close()
		return nil, nil, errors.Wrap(errors.ErrStore, "failed to migrate local database", err)
	}

	return New(database), database, nil
}

// Load returns the persisted recipe snapshot and the pending-operation
// queue in enqueue order. Empty defaults when nothing is persisted.
func (s *Store) Load() ([]models.Recipe, []models.PendingOperation, error) {
	recipes, err := s.loadRecipes()
	if err != nil {
		return nil, nil, err
	}
	ops, err := s.PendingOperations()
	if err != nil {
		return nil, nil, err
	}
	return recipes, ops, nil
}

func (s *Store) loadRecipes() ([]models.Recipe, error) {
	rows, err := s.db.Query(`SELECT id, name, origin, description, user_id
	                         FROM recipes ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStore, "failed to read recipe snapshot", err)
	}
	defer rows.Close()

	recipes := []models.Recipe{}
	for rows.Next() {
		var r models.Recipe
		if err := rows.Scan(&r.ID, &r.Name, &r.Origin.Name, &r.Description, &r.UserID); err != nil {
			return nil, errors.Wrap(errors.ErrStore, "failed to scan recipe", err)
		}
		recipes = append(recipes, r)
	}
	return recipes, rows.Err()
}

// SaveRecipes atomically replaces the persisted recipe snapshot.
func (s *Store) SaveRecipes(recipes []models.Recipe) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrStore, "failed to begin snapshot write", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM recipes`); err != nil {
		return errors.Wrap(errors.ErrStore, "failed to clear recipe snapshot", err)
	}
	for i, r := range recipes {
		_, err := tx.Exec(`INSERT INTO recipes (id, name, origin, description, user_id, position)
		                   VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, r.Name, r.Origin.Name, r.Description, r.UserID, i)
		if err != nil {
			return errors.Wrap(errors.ErrStore, "failed to write recipe snapshot", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrStore, "failed to commit recipe snapshot", err)
	}
	return nil
}

// PendingOperations returns the queue in enqueue order.
func (s *Store) PendingOperations() ([]models.PendingOperation, error) {
	rows, err := s.db.Query(`SELECT id, kind, target_id, payload, retry_count, created_at
	                         FROM pending_operations ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStore, "failed to read pending operations", err)
	}
	defer rows.Close()

	ops := []models.PendingOperation{}
	for rows.Next() {
		var op models.PendingOperation
		var payload string
		if err := rows.Scan(&op.ID, &op.Kind, &op.TargetID, &payload, &op.RetryCount, &op.CreatedAt); err != nil {
			return nil, errors.Wrap(errors.ErrStore, "failed to scan pending operation", err)
		}
		if payload != "" {
			op.Payload = json.RawMessage(payload)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// PendingCount returns the queue depth.
func (s *Store) PendingCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_operations`).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(errors.ErrStore, "failed to count pending operations", err)
	}
	return n, nil
}

// Enqueue appends a new operation to the queue with retryCount 0 and
// persists it immediately.
func (s *Store) Enqueue(kind models.OperationKind, targetID int64, payload json.RawMessage) (*models.PendingOperation, error) {
	op := &models.PendingOperation{
		ID:        models.UUID(uuid.New()),
		Kind:      kind,
		TargetID:  targetID,
		Payload:   payload,
		CreatedAt: time.Now().Unix(),
	}

	var seq int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM pending_operations`).Scan(&seq); err != nil {
		return nil, errors.Wrap(errors.ErrStore, "failed to allocate queue position", err)
	}

	_, err := s.db.Exec(`INSERT INTO pending_operations (id, kind, target_id, payload, retry_count, created_at, seq)
	                     VALUES (?, ?, ?, ?, 0, ?, ?)`,
		op.ID, op.Kind, op.TargetID, string(op.Payload), op.CreatedAt, seq)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStore, "failed to enqueue operation", err)
	}

	logging.Debug("enqueued offline operation", map[string]interface{}{
		"op_id": op.ID.String(), "kind": string(kind), "target_id": targetID,
	})
	return op, nil
}

// DrainSuccessful removes replayed operations from the persisted queue.
func (s *Store) DrainSuccessful(ops []models.PendingOperation) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrStore, "failed to begin queue drain", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		if _, err := tx.Exec(`DELETE FROM pending_operations WHERE id = ?`, op.ID); err != nil {
			return errors.Wrap(errors.ErrStore, "failed to remove replayed operation", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrStore, "failed to commit queue drain", err)
	}
	return nil
}

// RequeueWithBackoff persists failed operations with an incremented
// retryCount. Operations whose count reaches the ceiling are dropped
// permanently with a warning; the number dropped is returned.
func (s *Store) RequeueWithBackoff(ops []models.PendingOperation) (int, error) {
	if len(ops) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(errors.ErrStore, "failed to begin requeue", err)
	}
	defer tx.Rollback()

	dropped := 0
	for _, op := range ops {
		retries := op.RetryCount + 1
		if retries >= models.MaxRetries {
			if _, err := tx.Exec(`DELETE FROM pending_operations WHERE id = ?`, op.ID); err != nil {
				return 0, errors.Wrap(errors.ErrStore, "failed to drop operation", err)
			}
			dropped++
			logging.Warn("operation dropped after retry ceiling", map[string]interface{}{
				"op_id": op.ID.String(), "kind": string(op.Kind),
				"target_id": op.TargetID, "retries": retries,
			})
			continue
		}
		if _, err := tx.Exec(`UPDATE pending_operations SET retry_count = ? WHERE id = ?`, retries, op.ID); err != nil {
			return 0, errors.Wrap(errors.ErrStore, "failed to requeue operation", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrStore, "failed to commit requeue", err)
	}
	return dropped, nil
}
