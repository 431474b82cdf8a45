package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/nano-editor/internal/model"
	"github.com/aliskhannn/nano-editor/internal/store"
	"github.com/aliskhannn/nano-editor/internal/testutil"
)

func newStore(t *testing.T, maxRevisions int) (*store.JSONStore, string, *testutil.StubClock) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "projects.json")
	clock := testutil.FixedClock()

	s, err := store.NewJSONStore(path, maxRevisions, clock)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	return s, path, clock
}

func project(name, owner string) model.Project {
	return model.Project{
		Name:        name,
		Owner:       owner,
		Image:       model.StoredImage{ID: uuid.New(), URL: "data:image/png;base64,AA==", Name: name + ".png"},
		Adjustments: model.DefaultAdjustments(),
	}
}

func TestJSONStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newStore(t, 0)

	a, err := s.Save(ctx, project("a", "u1"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if a.ID == uuid.Nil || len(a.Revisions) != 1 {
		t.Fatalf("Save() = %+v, want ID and first revision", a)
	}

	clock.Advance(time.Minute)
	b, _ := s.Save(ctx, project("b", "u2"))

	if _, err := s.Save(ctx, b); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("Save(duplicate) error = %v, want ErrAlreadyExists", err)
	}

	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].ID != b.ID {
		t.Errorf("List() = %v, want b first", names(all))
	}

	mine, _ := s.List(ctx, "u1")
	if len(mine) != 1 || mine[0].ID != a.ID {
		t.Errorf("List(u1) = %v", names(mine))
	}

	clock.Advance(time.Minute)
	edit := a
	edit.Adjustments.Contrast = 30
	updated, err := s.Update(ctx, edit, "more contrast")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Adjustments.Contrast != 30 || len(updated.Revisions) != 2 || updated.Revisions[1].Note != "more contrast" {
		t.Errorf("Update() = %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("UpdatedAt not advanced")
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil || got.Adjustments.Contrast != 30 {
		t.Errorf("Get() = %+v, %v", got, err)
	}

	if err := s.Remove(ctx, a.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, store.ErrProjectNotFound) {
		t.Errorf("Get(removed) error = %v, want ErrProjectNotFound", err)
	}
	if err := s.Remove(ctx, a.ID); !errors.Is(err, store.ErrProjectNotFound) {
		t.Errorf("Remove(removed) error = %v, want ErrProjectNotFound", err)
	}
	if _, err := s.Update(ctx, a, ""); !errors.Is(err, store.ErrProjectNotFound) {
		t.Errorf("Update(removed) error = %v, want ErrProjectNotFound", err)
	}
}

func TestJSONStore_RevisionCapAndRestore(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newStore(t, 3)

	p, _ := s.Save(ctx, project("p", ""))
	first := p.Revisions[0].ID

	for i := 1; i <= 4; i++ {
		clock.Advance(time.Second)
		p.Adjustments.Exposure = float64(i * 10)
		var err error
		if p, err = s.Update(ctx, p, ""); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	if len(p.Revisions) != 3 {
		t.Fatalf("revisions = %d, want 3", len(p.Revisions))
	}
	if p.Revisions[0].Adjustments.Exposure != 20 {
		t.Errorf("oldest kept exposure = %v, want 20", p.Revisions[0].Adjustments.Exposure)
	}

	if _, err := s.Restore(ctx, p.ID, first); !errors.Is(err, store.ErrRevisionNotFound) {
		t.Errorf("Restore(evicted) error = %v, want ErrRevisionNotFound", err)
	}

	restored, err := s.Restore(ctx, p.ID, p.Revisions[0].ID)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.Adjustments.Exposure != 20 || restored.Revisions[len(restored.Revisions)-1].Note != "restored" {
		t.Errorf("Restore() = %+v", restored)
	}
}

func TestJSONStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path, _ := newStore(t, 0)

	p := project("keep", "u")
	p.Adjustments.HSL[model.ChannelBlue] = model.HSLAdjustment{Hue: 12}
	saved, err := s.Save(ctx, p)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened, err := store.NewJSONStore(path, 0, nil)
	if err != nil {
		t.Fatalf("NewJSONStore(reopen) error = %v", err)
	}

	got, err := reopened.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "keep" || got.Adjustments.HSL[model.ChannelBlue].Hue != 12 {
		t.Errorf("reopened project = %+v", got)
	}
	if len(got.Adjustments.HSL) != len(model.Channels) {
		t.Errorf("HSL channels = %d, want %d", len(got.Adjustments.HSL), len(model.Channels))
	}
}

func names(ps []model.Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
