package store

import (
	"encoding/json"
	"testing"

	"github.com/brewlog/brewsync/internal/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return st
}

func payload(t *testing.T, name string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(models.RecipePayload{Name: name, Origin: models.Origin{Name: "Kenya"}})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestLoadEmptyDefaults(t *testing.T) {
	st := openStore(t)

	recipes, ops, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(recipes) != 0 || len(ops) != 0 {
		t.Errorf("fresh store not empty: %d recipes, %d ops", len(recipes), len(ops))
	}
}

func TestSaveRecipesOverwritesAtomically(t *testing.T) {
	st := openStore(t)

	first := []models.Recipe{
		{ID: 1, Name: "Espresso", Origin: models.Origin{Name: "Italy"}},
		{ID: 2, Name: "Pour Over", Origin: models.Origin{Name: "Kenya"}},
	}
	if err := st.SaveRecipes(first); err != nil {
		t.Fatal(err)
	}

	second := []models.Recipe{
		{ID: 3, Name: "Cold Brew", Origin: models.Origin{Name: "USA"}, Description: "slow", UserID: 7},
	}
	if err := st.SaveRecipes(second); err != nil {
		t.Fatal(err)
	}

	recipes, _, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(recipes) != 1 {
		t.Fatalf("expected overwrite, got %d recipes", len(recipes))
	}
	if recipes[0].Name != "Cold Brew" || recipes[0].UserID != 7 {
		t.Errorf("unexpected recipe: %+v", recipes[0])
	}
}

func TestSaveRecipesPreservesOrder(t *testing.T) {
	st := openStore(t)

	list := []models.Recipe{{ID: 9}, {ID: 3}, {ID: 7}, {ID: 1}}
	if err := st.SaveRecipes(list); err != nil {
		t.Fatal(err)
	}
	recipes, _, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range recipes {
		if r.ID != list[i].ID {
			t.Fatalf("order not preserved: got %v", recipes)
		}
	}
}

func TestEnqueuePreservesOrder(t *testing.T) {
	st := openStore(t)

	names := []string{"first", "second", "third"}
	for _, n := range names {
		if _, err := st.Enqueue(models.OperationAdd, models.NewPlaceholderID(), payload(t, n)); err != nil {
			t.Fatal(err)
		}
	}

	ops, err := st.PendingOperations()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 {
		t.Fatalf("queue depth = %d", len(ops))
	}
	for i, op := range ops {
		if op.RetryCount != 0 {
			t.Errorf("op %d retry count = %d, want 0", i, op.RetryCount)
		}
		p, err := op.DecodePayload()
		if err != nil {
			t.Fatal(err)
		}
		if p.Name != names[i] {
			t.Errorf("op %d name = %s, want %s", i, p.Name, names[i])
		}
	}
}

func TestDrainSuccessfulRemovesOnlyGiven(t *testing.T) {
	st := openStore(t)

	op1, _ := st.Enqueue(models.OperationAdd, 0, payload(t, "keep"))
	op2, _ := st.Enqueue(models.OperationDelete, 42, nil)
	_ = op1

	if err := st.DrainSuccessful([]models.PendingOperation{*op2}); err != nil {
		t.Fatal(err)
	}

	ops, err := st.PendingOperations()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 {
		t.Fatalf("queue depth = %d, want 1", len(ops))
	}
	if ops[0].Kind != models.OperationAdd {
		t.Errorf("wrong op drained: %+v", ops[0])
	}
}

func TestRequeueDropsAtCeiling(t *testing.T) {
	st := openStore(t)

	op, err := st.Enqueue(models.OperationEdit, 5, payload(t, "doomed"))
	if err != nil {
		t.Fatal(err)
	}

	// Two failures keep it queued, the third drops it.
	for attempt := 1; attempt <= models.MaxRetries; attempt++ {
		ops, err := st.PendingOperations()
		if err != nil {
			t.Fatal(err)
		}
		dropped, err := st.RequeueWithBackoff(ops)
		if err != nil {
			t.Fatal(err)
		}

		remaining, err := st.PendingOperations()
		if err != nil {
			t.Fatal(err)
		}
		if attempt < models.MaxRetries {
			if dropped != 0 || len(remaining) != 1 {
				t.Fatalf("attempt %d: dropped=%d remaining=%d", attempt, dropped, len(remaining))
			}
			if remaining[0].RetryCount != attempt {
				t.Errorf("attempt %d: retry count = %d", attempt, remaining[0].RetryCount)
			}
		} else {
			if dropped != 1 || len(remaining) != 0 {
				t.Fatalf("final attempt: dropped=%d remaining=%d", dropped, len(remaining))
			}
		}
	}
	_ = op
}

func TestCredentialsRoundTrip(t *testing.T) {
	st := openStore(t)

	loaded, err := st.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if loaded != nil {
		t.Fatal("fresh store must have no credentials")
	}

	creds := &models.Credentials{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		UserID:       7,
		Username:     "kim",
	}
	if err := st.SaveCredentials(creds); err != nil {
		t.Fatal(err)
	}

	loaded, err = st.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.RefreshToken != "refresh-token" || loaded.Username != "kim" {
		t.Errorf("unexpected credentials: %+v", loaded)
	}

	// The refresh token must not be stored in the clear.
	var raw string
	if err := st.db.QueryRow(`SELECT refresh_token FROM credentials WHERE id = 1`).Scan(&raw); err != nil {
		t.Fatal(err)
	}
	if raw == "refresh-token" {
		t.Error("refresh token persisted unencrypted")
	}

	if err := st.ClearCredentials(); err != nil {
		t.Fatal(err)
	}
	loaded, err = st.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if loaded != nil {
		t.Error("credentials survived logout")
	}
}

func TestSaveCredentialsReplacesPrevious(t *testing.T) {
	st := openStore(t)

	if err := st.SaveCredentials(&models.Credentials{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveCredentials(&models.Credentials{AccessToken: "a2", RefreshToken: "r2", Username: "kim"}); err != nil {
		t.Fatal(err)
	}

	loaded, err := st.LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.AccessToken != "a2" || loaded.RefreshToken != "r2" {
		t.Errorf("old pair survived: %+v", loaded)
	}

	var count int
	if err := st.db.QueryRow(`SELECT COUNT(*) FROM credentials`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("credential rows = %d, want 1", count)
	}
}
