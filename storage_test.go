package main

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"stellar-hierarchy/hierarchy"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

// =============================================================================
// SYSTEM PERSISTENCE TESTS
// =============================================================================

func TestStorage_SystemRoundTrip(t *testing.T) {
	storage := newTestStorage(t)

	if _, err := storage.LoadSystem(); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("LoadSystem on empty db = %v, want sql.ErrNoRows", err)
	}

	sys := NewSystem("Kepler", uuid.MustParse("12345678-1234-1234-1234-123456789012"))
	if err := storage.SaveSystem(sys); err != nil {
		t.Fatalf("SaveSystem: %v", err)
	}

	loaded, err := storage.LoadSystem()
	if err != nil {
		t.Fatalf("LoadSystem: %v", err)
	}
	if loaded.ID != sys.ID || loaded.Name != sys.Name {
		t.Errorf("loaded %+v, want %+v", loaded, sys)
	}
	if loaded.CreatedAt.Unix() != sys.CreatedAt.Unix() {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, sys.CreatedAt)
	}
}

// =============================================================================
// REGISTRY PERSISTENCE TESTS
// =============================================================================

func TestStorage_LoadRegistryEmpty(t *testing.T) {
	storage := newTestStorage(t)
	if _, _, err := storage.LoadRegistry(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("LoadRegistry on empty db = %v, want ErrNoSnapshot", err)
	}
}

func TestStorage_RegistryRoundTrip(t *testing.T) {
	storage := newTestStorage(t)

	sys := &System{ID: uuid.MustParse("12345678-1234-1234-1234-123456789012"), Name: "Round"}
	reg, err := sys.GenerateBodies()
	if err != nil {
		t.Fatalf("GenerateBodies: %v", err)
	}

	// One body without physics and one destroyed, to cover the nullable columns
	ghost := &hierarchy.Body{ID: uuid.New(), Name: "ghost", Kind: hierarchy.KindOortCloud}
	if err := reg.Add(ghost); err != nil {
		t.Fatal(err)
	}
	last := reg.Bodies()[1]
	if err := reg.SetStatus(last.ID, hierarchy.StatusAnnihilated); err != nil {
		t.Fatal(err)
	}

	if err := storage.SaveRegistry(reg, 42); err != nil {
		t.Fatalf("SaveRegistry: %v", err)
	}
	loaded, tick, err := storage.LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if tick != 42 {
		t.Errorf("tick = %d, want 42", tick)
	}
	if loaded.Len() != reg.Len() {
		t.Fatalf("loaded %d bodies, want %d", loaded.Len(), reg.Len())
	}

	for i, want := range reg.Bodies() {
		got := loaded.Bodies()[i]
		if got.ID != want.ID || got.Name != want.Name || got.Kind != want.Kind ||
			got.Status != want.Status || got.ParentID != want.ParentID || got.IsMainStar != want.IsMainStar {
			t.Errorf("body %d: got %+v, want %+v", i, got, want)
		}
		if (got.Physics == nil) != (want.Physics == nil) {
			t.Errorf("%s physics presence differs", want.Name)
		} else if got.Physics != nil && *got.Physics != *want.Physics {
			t.Errorf("%s physics = %+v, want %+v", want.Name, *got.Physics, *want.Physics)
		}
		if (got.Orbit == nil) != (want.Orbit == nil) {
			t.Errorf("%s orbit presence differs", want.Name)
		} else if got.Orbit != nil && *got.Orbit != *want.Orbit {
			t.Errorf("%s orbit = %+v, want %+v", want.Name, *got.Orbit, *want.Orbit)
		}
	}
}

func TestStorage_SaveRegistryReplaces(t *testing.T) {
	storage := newTestStorage(t)

	first := hierarchy.NewRegistry()
	first.Add(&hierarchy.Body{ID: uuid.New(), Kind: hierarchy.KindStar, IsMainStar: true})
	first.Add(&hierarchy.Body{ID: uuid.New(), Kind: hierarchy.KindPlanet})
	if err := storage.SaveRegistry(first, 1); err != nil {
		t.Fatal(err)
	}

	second := hierarchy.NewRegistry()
	second.Add(&hierarchy.Body{ID: uuid.New(), Kind: hierarchy.KindStar, IsMainStar: true})
	if err := storage.SaveRegistry(second, 2); err != nil {
		t.Fatal(err)
	}

	loaded, tick, err := storage.LoadRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 1 || tick != 2 {
		t.Errorf("loaded %d bodies at tick %d, want 1 at tick 2", loaded.Len(), tick)
	}
}

func TestStorage_SnapshotVersionGate(t *testing.T) {
	cur := CurrentSnapshotVersion
	tests := []struct {
		name    string
		written SnapshotVersion
		wantErr bool
	}{
		{"current", cur, false},
		{"newer patch", SnapshotVersion{cur.Major, cur.Minor, cur.Patch + 1}, false},
		{"older minor", SnapshotVersion{cur.Major, cur.Minor - 1, 7}, false},
		{"newer minor", SnapshotVersion{cur.Major, cur.Minor + 1, 0}, true},
		{"other major", SnapshotVersion{Major: cur.Major + 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := newTestStorage(t)
			if err := storage.SaveRegistry(hierarchy.NewRegistry(), 0); err != nil {
				t.Fatal(err)
			}
			if _, err := storage.db.Exec(`UPDATE meta SET value = ? WHERE key = 'snapshot_version'`, tt.written.String()); err != nil {
				t.Fatal(err)
			}
			if _, _, err := storage.LoadRegistry(); (err != nil) != tt.wantErr {
				t.Errorf("LoadRegistry of a %s snapshot: err = %v, wantErr %v", tt.written, err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// STARTUP TESTS
// =============================================================================

func seedConfig() HostConfig {
	cfg := DefaultHostConfig()
	cfg.Name = "Other"
	cfg.Seed = "other-seed"
	return cfg
}

func TestLoadOrSeed_EmptyDatabaseSeeds(t *testing.T) {
	storage := newTestStorage(t)

	system, reg, tick, err := loadOrSeed(storage, seedConfig())
	if err != nil {
		t.Fatalf("loadOrSeed: %v", err)
	}
	if system.Name != "Other" || system.ID != generateDeterministicUUID("other-seed") || tick != 0 {
		t.Errorf("seeded %s (%s) at tick %d", system.Name, system.ID, tick)
	}
	if reg.Len() == 0 {
		t.Error("seeded registry is empty")
	}
	if _, err := storage.LoadSystem(); err != nil {
		t.Errorf("seeded system was not saved: %v", err)
	}
}

func storedSystem(t *testing.T, storage *Storage) (*System, *hierarchy.Body) {
	t.Helper()
	system := NewSystem("Kept", uuid.MustParse("12345678-1234-1234-1234-123456789012"))
	if err := storage.SaveSystem(system); err != nil {
		t.Fatal(err)
	}
	reg, err := system.GenerateBodies()
	if err != nil {
		t.Fatal(err)
	}
	victim := reg.Bodies()[1]
	if err := reg.SetStatus(victim.ID, hierarchy.StatusDestroyed); err != nil {
		t.Fatal(err)
	}
	if err := storage.SaveRegistry(reg, 42); err != nil {
		t.Fatal(err)
	}
	return system, victim
}

func TestLoadOrSeed_RestoresStoredSystem(t *testing.T) {
	storage := newTestStorage(t)
	stored, victim := storedSystem(t, storage)

	system, reg, tick, err := loadOrSeed(storage, seedConfig())
	if err != nil {
		t.Fatalf("loadOrSeed: %v", err)
	}
	if system.ID != stored.ID || system.Name != "Kept" || tick != 42 {
		t.Errorf("loaded %s (%s) at tick %d, want Kept at tick 42", system.Name, system.ID, tick)
	}
	if b, ok := reg.Get(victim.ID); !ok || b.Status != hierarchy.StatusDestroyed {
		t.Errorf("destroyed body was not restored")
	}
}

func TestLoadOrSeed_UnreadableSystemIsNotOverwritten(t *testing.T) {
	storage := newTestStorage(t)
	_, victim := storedSystem(t, storage)

	if _, err := storage.db.Exec(`UPDATE meta SET value = 'not-a-uuid' WHERE key = 'system_id'`); err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := loadOrSeed(storage, seedConfig()); err == nil {
		t.Fatal("loadOrSeed seeded over an unreadable system")
	}

	reg, tick, err := storage.LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if tick != 42 {
		t.Errorf("tick = %d, want 42", tick)
	}
	if b, ok := reg.Get(victim.ID); !ok || b.Status != hierarchy.StatusDestroyed {
		t.Errorf("stored hierarchy was replaced")
	}
}

// =============================================================================
// CHANGE LOG TESTS
// =============================================================================

func TestStorage_Changes(t *testing.T) {
	storage := newTestStorage(t)

	star, planet, moon := uuid.New(), uuid.New(), uuid.New()
	if err := storage.AppendChanges(3, hierarchy.ChangeLog{
		{BodyID: planet, OldParent: uuid.New(), NewParent: star, Reason: hierarchy.ReasonPlanetOrphaned},
		{BodyID: moon, OldParent: planet, NewParent: hierarchy.NoParent, Reason: hierarchy.ReasonFanOut},
	}); err != nil {
		t.Fatalf("AppendChanges: %v", err)
	}
	if err := storage.AppendChanges(9, hierarchy.ChangeLog{
		{BodyID: moon, OldParent: hierarchy.NoParent, NewParent: star, Reason: hierarchy.ReasonRepair},
	}); err != nil {
		t.Fatalf("AppendChanges: %v", err)
	}
	if err := storage.AppendChanges(10, nil); err != nil {
		t.Fatalf("AppendChanges(nil): %v", err)
	}

	all, err := storage.RecentChanges(10, "")
	if err != nil {
		t.Fatalf("RecentChanges: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d changes, want 3", len(all))
	}
	newest := all[0]
	if newest.Tick != 9 || newest.Reason != hierarchy.ReasonRepair {
		t.Errorf("newest = %+v, want the tick 9 repair", newest)
	}
	if newest.OldParentID != "" || newest.NewParentID != star.String() {
		t.Errorf("newest parents = %q -> %q", newest.OldParentID, newest.NewParentID)
	}

	limited, err := storage.RecentChanges(1, "")
	if err != nil || len(limited) != 1 {
		t.Errorf("RecentChanges(1) = %d entries, %v", len(limited), err)
	}

	forMoon, err := storage.RecentChanges(10, moon.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(forMoon) != 2 {
		t.Errorf("moon has %d changes, want 2", len(forMoon))
	}

	stats, err := storage.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats["stored_changes"] != 3 {
		t.Errorf("stored_changes = %v, want 3", stats["stored_changes"])
	}
	byReason := stats["changes_by_reason"].(map[string]int)
	if byReason[string(hierarchy.ReasonFanOut)] != 1 {
		t.Errorf("changes_by_reason = %v", byReason)
	}
}
