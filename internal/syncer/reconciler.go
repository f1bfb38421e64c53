// Package syncer reconciles the local mutation store with the backend.
// While connectivity is down mutations are applied to the local snapshot
// and queued; on recovery the queue is replayed in enqueue order and the
// authoritative list is refetched.
package syncer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/brewlog/brewsync/internal/api"
	"github.com/brewlog/brewsync/internal/auth"
	"github.com/brewlog/brewsync/internal/errors"
	"github.com/brewlog/brewsync/internal/logging"
	"github.com/brewlog/brewsync/internal/models"
	"github.com/brewlog/brewsync/internal/netmon"
	"github.com/brewlog/brewsync/internal/store"
)

// State labels the reconciler's position in its connectivity state
// machine.
type State string

const (
	StateOffline State = "OFFLINE"
	StateSyncing State = "ONLINE_SYNCING"
	StateIdle    State = "ONLINE_IDLE"
)

// Reconciler owns the visible recipe list. All mutations go through it
// so that offline and online paths stay consistent.
type Reconciler struct {
	store   *store.Store
	client  *api.Client
	tokens  *auth.Manager
	monitor *netmon.Monitor

	// syncMu serializes replay passes.
	syncMu sync.Mutex

	mu      sync.RWMutex
	state   State
	recipes []models.Recipe
	dropped int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Reconciler seeded from the persisted snapshot.
func New(st *store.Store, client *api.Client, tokens *auth.Manager, monitor *netmon.Monitor) (*Reconciler, error) {
	recipes, _, err := st.Load()
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		store:   st,
		client:  client,
		tokens:  tokens,
		monitor: monitor,
		state:   StateOffline,
		recipes: recipes,
	}, nil
}

// State returns the current state machine position.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Recipes returns a copy of the visible recipe list.
func (r *Reconciler) Recipes() []models.Recipe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Recipe, len(r.recipes))
	copy(out, r.recipes)
	return out
}

// DroppedCount returns the number of operations permanently dropped at
// the retry ceiling since this Reconciler was created.
func (r *Reconciler) DroppedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// Start watches connectivity and triggers a replay pass on recovery.
func (r *Reconciler) Start(ctx context.Context) {
	r.stopCh = make(chan struct{})
	statusCh := r.monitor.Subscribe()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.stopCh:
				return
			case status := <-statusCh:
				r.onStatus(ctx, status)
			}
		}
	}()
}

// Stop halts the connectivity watcher. In-flight replay finishes on its
// own.
func (r *Reconciler) Stop() {
	if r.stopCh != nil {
		close(r.stopCh)
	}
	r.wg.Wait()
}

func (r *Reconciler) onStatus(ctx context.Context, status netmon.Status) {
	if !status.NetworkOnline || !status.ServerOnline {
		r.enterOffline()
		return
	}
	if !r.tokens.LoggedIn() {
		// Online but unauthenticated: idle, nothing to replay.
		r.setState(StateIdle)
		return
	}
	if err := r.Sync(ctx); err != nil && !errors.Is(err, errors.ErrSyncInProgress) {
		logging.Warn("sync pass failed", map[string]interface{}{"error": err.Error()})
	}
}

// enterOffline swaps the visible list for the persisted snapshot. No
// network is touched.
func (r *Reconciler) enterOffline() {
	recipes, _, err := r.store.Load()
	if err != nil {
		logging.Error("failed to load offline snapshot", err)
		recipes = r.Recipes()
	}
	r.mu.Lock()
	r.state = StateOffline
	r.recipes = recipes
	r.mu.Unlock()
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Reconciler) online() bool {
	status := r.monitor.Status()
	return status.NetworkOnline && status.ServerOnline
}

// Add creates a recipe. Online it posts directly; offline it inserts a
// placeholder record and queues an ADD for replay.
func (r *Reconciler) Add(ctx context.Context, payload models.RecipePayload) (*models.Recipe, error) {
	if r.online() && r.tokens.LoggedIn() {
		created, err := r.client.CreateRecipe(ctx, payload)
		if err == nil {
			r.applyLocal(func(list []models.Recipe) []models.Recipe {
				return append(list, *created)
			})
			return created, nil
		}
		if !connectivityError(err) {
			return nil, err
		}
		r.monitor.ForceCheck()
	}
	return r.addOffline(payload)
}

func (r *Reconciler) addOffline(payload models.RecipePayload) (*models.Recipe, error) {
	recipe := models.Recipe{
		ID:          models.NewPlaceholderID(),
		Name:        payload.Name,
		Origin:      payload.Origin,
		Description: payload.Description,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to encode operation payload", err)
	}
	if _, err := r.store.Enqueue(models.OperationAdd, recipe.ID, body); err != nil {
		return nil, err
	}
	r.applyLocal(func(list []models.Recipe) []models.Recipe {
		return append(list, recipe)
	})
	return &recipe, nil
}

// Edit updates a recipe. Online it puts directly; offline it patches the
// local record and queues an EDIT.
func (r *Reconciler) Edit(ctx context.Context, id int64, payload models.RecipePayload) (*models.Recipe, error) {
	if r.online() && r.tokens.LoggedIn() && !models.IsPlaceholder(id) {
		updated, err := r.client.UpdateRecipe(ctx, id, payload)
		if err == nil {
			r.applyLocal(func(list []models.Recipe) []models.Recipe {
				return replaceByID(list, id, *updated)
			})
			return updated, nil
		}
		if !connectivityError(err) {
			return nil, err
		}
		r.monitor.ForceCheck()
	}
	return r.editOffline(id, payload)
}

func (r *Reconciler) editOffline(id int64, payload models.RecipePayload) (*models.Recipe, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "failed to encode operation payload", err)
	}
	if _, err := r.store.Enqueue(models.OperationEdit, id, body); err != nil {
		return nil, err
	}
	patched := models.Recipe{
		ID:          id,
		Name:        payload.Name,
		Origin:      payload.Origin,
		Description: payload.Description,
	}
	r.applyLocal(func(list []models.Recipe) []models.Recipe {
		return replaceByID(list, id, patched)
	})
	return &patched, nil
}

// Delete removes a recipe. A backend 404 counts as success: the record
// is already gone.
func (r *Reconciler) Delete(ctx context.Context, id int64) error {
	if r.online() && r.tokens.LoggedIn() && !models.IsPlaceholder(id) {
		err := r.client.DeleteRecipe(ctx, id)
		if err == nil || errors.Is(err, errors.ErrNotFound) {
			r.applyLocal(func(list []models.Recipe) []models.Recipe {
				return removeByID(list, id)
			})
			return nil
		}
		if !connectivityError(err) {
			return err
		}
		r.monitor.ForceCheck()
	}
	return r.deleteOffline(id)
}

func (r *Reconciler) deleteOffline(id int64) error {
	if _, err := r.store.Enqueue(models.OperationDelete, id, nil); err != nil {
		return err
	}
	r.applyLocal(func(list []models.Recipe) []models.Recipe {
		return removeByID(list, id)
	})
	return nil
}

// Sync runs one replay pass: every queued operation is attempted once
// in enqueue order, the queue is persisted, and the authoritative list
// is refetched. Returns ErrSyncInProgress if a pass is already running.
func (r *Reconciler) Sync(ctx context.Context) error {
	if !r.syncMu.TryLock() {
		return errors.New(errors.ErrSyncInProgress, "replay pass already running")
	}
	defer r.syncMu.Unlock()

	r.setState(StateSyncing)

	ops, err := r.store.PendingOperations()
	if err != nil {
		r.setState(StateOffline)
		return err
	}

	done, failed := r.replay(ctx, ops)

	if err := r.store.DrainSuccessful(done); err != nil {
		logging.Error("failed to drain replayed operations", err)
	}
	dropped, err := r.store.RequeueWithBackoff(failed)
	if err != nil {
		logging.Error("failed to requeue operations", err)
	}
	if dropped > 0 {
		r.mu.Lock()
		r.dropped += dropped
		r.mu.Unlock()
	}

	list, err := r.client.ListRecipes(ctx)
	if err != nil {
		r.setState(StateOffline)
		return errors.Wrap(errors.ErrRequestFailed, "authoritative refresh failed", err)
	}
	if err := r.store.SaveRecipes(list); err != nil {
		return err
	}
	r.mu.Lock()
	r.recipes = list
	r.state = StateIdle
	r.mu.Unlock()

	logging.Info("sync pass complete", map[string]interface{}{
		"replayed": len(done), "requeued": len(failed) - dropped, "dropped": dropped,
	})
	return nil
}

// replay attempts each operation once, oldest first. Server ids assigned
// to replayed ADDs are threaded into later operations that still target
// the placeholder.
func (r *Reconciler) replay(ctx context.Context, ops []models.PendingOperation) (done, failed []models.PendingOperation) {
	assigned := map[int64]int64{}

	for _, op := range ops {
		target := op.TargetID
		if real, ok := assigned[target]; ok {
			target = real
		}

		var err error
		switch op.Kind {
		case models.OperationAdd:
			err = r.replayAdd(ctx, op, assigned)
		case models.OperationEdit:
			err = r.replayEdit(ctx, op, target, assigned)
		case models.OperationDelete:
			err = r.client.DeleteRecipe(ctx, target)
			if errors.Is(err, errors.ErrNotFound) {
				err = nil
			}
		}

		if err == nil {
			done = append(done, op)
			continue
		}
		if errors.Is(err, errors.ErrAuthFailed) || errors.Is(err, errors.ErrUnauthenticated) {
			// Session is gone; leave the rest queued untouched.
			logging.Warn("replay aborted, session expired", map[string]interface{}{
				"remaining": len(ops) - len(done) - len(failed),
			})
			return done, failed
		}
		logging.Warn("operation replay failed", map[string]interface{}{
			"op_id": op.ID.String(), "kind": string(op.Kind),
			"target_id": op.TargetID, "error": err.Error(),
		})
		failed = append(failed, op)
	}
	return done, failed
}

func (r *Reconciler) replayAdd(ctx context.Context, op models.PendingOperation, assigned map[int64]int64) error {
	payload, err := op.DecodePayload()
	if err != nil {
		return err
	}
	created, err := r.client.CreateRecipe(ctx, payload)
	if err != nil {
		return err
	}
	assigned[op.TargetID] = created.ID
	r.applyLocal(func(list []models.Recipe) []models.Recipe {
		return replaceByID(list, op.TargetID, *created)
	})
	return nil
}

// replayEdit treats a 404 as "the target never landed": the edit payload
// is resubmitted as a fresh ADD.
func (r *Reconciler) replayEdit(ctx context.Context, op models.PendingOperation, target int64, assigned map[int64]int64) error {
	payload, err := op.DecodePayload()
	if err != nil {
		return err
	}
	updated, err := r.client.UpdateRecipe(ctx, target, payload)
	if err == nil {
		r.applyLocal(func(list []models.Recipe) []models.Recipe {
			return replaceByID(list, op.TargetID, *updated)
		})
		return nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return err
	}

	created, err := r.client.CreateRecipe(ctx, payload)
	if err != nil {
		return err
	}
	assigned[op.TargetID] = created.ID
	r.applyLocal(func(list []models.Recipe) []models.Recipe {
		return replaceByID(list, op.TargetID, *created)
	})
	return nil
}

// applyLocal mutates the visible list and persists the snapshot.
func (r *Reconciler) applyLocal(mutate func([]models.Recipe) []models.Recipe) {
	r.mu.Lock()
	r.recipes = mutate(r.recipes)
	snapshot := make([]models.Recipe, len(r.recipes))
	copy(snapshot, r.recipes)
	r.mu.Unlock()

	if err := r.store.SaveRecipes(snapshot); err != nil {
		logging.Error("failed to persist recipe snapshot", err)
	}
}

// Prepend inserts a recipe at the head of the visible list, used by the
// realtime push channel. Records already present are ignored.
func (r *Reconciler) Prepend(recipe models.Recipe) {
	r.mu.RLock()
	for _, existing := range r.recipes {
		if existing.ID == recipe.ID {
			r.mu.RUnlock()
			return
		}
	}
	r.mu.RUnlock()

	r.applyLocal(func(list []models.Recipe) []models.Recipe {
		return append([]models.Recipe{recipe}, list...)
	})
}

func replaceByID(list []models.Recipe, id int64, recipe models.Recipe) []models.Recipe {
	for i := range list {
		if list[i].ID == id {
			list[i] = recipe
			return list
		}
	}
	return append(list, recipe)
}

func removeByID(list []models.Recipe, id int64) []models.Recipe {
	out := list[:0]
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func connectivityError(err error) bool {
	return errors.Is(err, errors.ErrServerUnreachable) || errors.Is(err, errors.ErrNetworkUnreachable)
}
