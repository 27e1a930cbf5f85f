// ABOUTME: Behavioural tests shared by the memory and SQLite stores.
// ABOUTME: Covers CRUD, ETag preconditions, history ordering, and copy isolation.
package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/2389-research/pipeconf/pipeline/pipelinetest"
)

func eachStore(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		st, err := OpenSqlite(filepath.Join(t.TempDir(), "pipeconf.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		fn(t, st)
	})
}

func TestStoreCreateAndGet(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		rec, err := st.Create(ctx, pipelinetest.Sample(t))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if rec.ETag == "" || rec.UpdatedAt.IsZero() {
			t.Fatalf("expected etag and timestamp, got %+v", rec)
		}

		got, err := st.Get(ctx, "yourproject")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ETag != rec.ETag {
			t.Errorf("etag = %q, want %q", got.ETag, rec.ETag)
		}
		if got.Pipeline.Parameters().Len() != 2 {
			t.Errorf("parameters = %d", got.Pipeline.Parameters().Len())
		}
		v, ok := got.Pipeline.EnvironmentVariables().Get("PASSWORD")
		if !ok || v.EncryptedValue() != "c!ph3rt3xt" {
			t.Error("expected secure variable ciphertext to round-trip")
		}

		if _, err := st.Create(ctx, pipelinetest.Sample(t)); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
		if _, err := st.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStorePutRequiresMatchingETag(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		rec, err := st.Create(ctx, pipelinetest.Sample(t))
		if err != nil {
			t.Fatal(err)
		}

		p := rec.Pipeline
		p.SetLabelTemplate("v2-${COUNT}")
		updated, err := st.Put(ctx, p, rec.ETag)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		if updated.ETag == rec.ETag {
			t.Error("expected etag to change with the document")
		}

		p.SetLabelTemplate("v3-${COUNT}")
		if _, err := st.Put(ctx, p, rec.ETag); !errors.Is(err, ErrPreconditionFailed) {
			t.Fatalf("expected ErrPreconditionFailed for stale etag, got %v", err)
		}
		got, _ := st.Get(ctx, "yourproject")
		if got.Pipeline.LabelTemplate() != "v2-${COUNT}" {
			t.Errorf("label = %q after rejected put", got.Pipeline.LabelTemplate())
		}

		if _, err := st.Put(ctx, pipelinetest.Named(t, "ghost"), `"x"`); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStoreETagIsDeterministic(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		rec, err := st.Create(ctx, pipelinetest.Sample(t))
		if err != nil {
			t.Fatal(err)
		}
		same, err := st.Put(ctx, rec.Pipeline, rec.ETag)
		if err != nil {
			t.Fatal(err)
		}
		if same.ETag != rec.ETag {
			t.Errorf("unchanged document produced a new etag: %q vs %q", same.ETag, rec.ETag)
		}
	})
}

func TestStoreListAndDelete(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		for _, name := range []string{"zeta", "alpha", "mid"} {
			if _, err := st.Create(ctx, pipelinetest.Named(t, name)); err != nil {
				t.Fatal(err)
			}
		}
		recs, err := st.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var names []string
		for _, r := range recs {
			names = append(names, r.Pipeline.Name())
		}
		if len(names) != 3 || names[0] != "alpha" || names[1] != "mid" || names[2] != "zeta" {
			t.Fatalf("list order = %v", names)
		}

		if err := st.Delete(ctx, "mid", `"wrong"`); !errors.Is(err, ErrPreconditionFailed) {
			t.Errorf("expected ErrPreconditionFailed, got %v", err)
		}
		if err := st.Delete(ctx, "mid", ""); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := st.Delete(ctx, "mid", ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
		recs, _ = st.List(ctx)
		if len(recs) != 2 {
			t.Errorf("expected 2 pipelines after delete, got %d", len(recs))
		}
	})
}

func TestStoreHistory(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		rec, err := st.Create(ctx, pipelinetest.Named(t, "build"))
		if err != nil {
			t.Fatal(err)
		}
		rec.Pipeline.SetEnablePipelineLocking(true)
		rec, err = st.Put(ctx, rec.Pipeline, rec.ETag)
		if err != nil {
			t.Fatal(err)
		}
		if err := st.Delete(ctx, "build", rec.ETag); err != nil {
			t.Fatal(err)
		}

		changes, err := st.History(ctx, "build")
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		want := []Action{ActionCreate, ActionUpdate, ActionDelete}
		if len(changes) != len(want) {
			t.Fatalf("history = %+v", changes)
		}
		for i, c := range changes {
			if c.Action != want[i] {
				t.Errorf("change %d action = %s, want %s", i, c.Action, want[i])
			}
			if i > 0 && c.ID <= changes[i-1].ID {
				t.Errorf("change ids not ascending: %s then %s", changes[i-1].ID, c.ID)
			}
		}
		if _, err := st.History(ctx, "never"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStoreReturnsCopies(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		p := pipelinetest.Sample(t)
		if _, err := st.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
		p.SetLabelTemplate("mutated-${COUNT}")

		got, _ := st.Get(ctx, "yourproject")
		got.Pipeline.Parameters().Remove("COMMAND")
		again, _ := st.Get(ctx, "yourproject")
		if again.Pipeline.LabelTemplate() == "mutated-${COUNT}" {
			t.Error("store must not alias the caller's pipeline")
		}
		if again.Pipeline.Parameters().Len() != 2 {
			t.Error("store must not alias returned pipelines")
		}
	})
}

func TestSqliteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeconf.db")
	st, err := OpenSqlite(path)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := st.Create(context.Background(), pipelinetest.Sample(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st, err = OpenSqlite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	got, err := st.Get(context.Background(), "yourproject")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.ETag != rec.ETag {
		t.Errorf("etag = %q, want %q", got.ETag, rec.ETag)
	}
}
