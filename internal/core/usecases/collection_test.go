package usecases_test

import (
	"strings"
	"testing"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/usecases"
)

func TestObjectCollection_MergeIsIdempotent(t *testing.T) {
	c := usecases.NewObjectCollection()
	batch := []domain.MuseumObject{
		object("1", 10, 20, 30, 40),
		object("2", 11, 21, 31, 41),
	}

	if added := c.Merge(batch); added != 2 {
		t.Fatalf("expected 2 added, got %d", added)
	}
	v := c.Version()

	if added := c.Merge(batch); added != 0 {
		t.Errorf("expected re-merge to add nothing, got %d", added)
	}
	if c.Version() != v {
		t.Errorf("version moved on a no-op merge: %d -> %d", v, c.Version())
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 objects, got %d", c.Len())
	}
}

func TestObjectCollection_FirstOccurrenceWins(t *testing.T) {
	c := usecases.NewObjectCollection()
	first := object("1", 10, 20, 30, 40)
	first.Title = "first"
	second := object("1", 10, 20, 30, 40)
	second.Title = "second"

	c.Merge([]domain.MuseumObject{first, second})

	got, ok := c.Get("1")
	if !ok || got.Title != "first" {
		t.Errorf("expected first occurrence kept, got %+v", got)
	}
}

func TestObjectCollection_SnapshotIsCopy(t *testing.T) {
	c := usecases.NewObjectCollection()
	c.Merge([]domain.MuseumObject{object("1", 10, 20, 30, 40)})

	snap := c.Snapshot()
	c.Merge([]domain.MuseumObject{object("2", 11, 21, 31, 41)})

	if len(snap.Objects) != 1 {
		t.Errorf("snapshot changed after merge: %d objects", len(snap.Objects))
	}
	if next := c.Snapshot(); next.Version == snap.Version {
		t.Error("expected a new version after adding objects")
	}
}

func TestRecentSearches(t *testing.T) {
	r := usecases.NewRecentSearches(nil)
	for _, q := range []string{"Lagos", "Cusco", "Benin City", "Cusco", " ", "Kyoto", "Delhi", "Accra"} {
		r.Add(q)
	}

	got := strings.Join(r.List(), ",")
	if got != "Accra,Delhi,Kyoto,Cusco,Benin City" {
		t.Errorf("unexpected recent list: %s", got)
	}
}

func TestRecentSearches_SeedKeepsOrder(t *testing.T) {
	r := usecases.NewRecentSearches([]string{"a", "b", "a", "c", "d", "e", "f"})
	if got := strings.Join(r.List(), ","); got != "a,b,c,d,e" {
		t.Errorf("unexpected seeded list: %s", got)
	}
}
