package sqlitekv

import (
	"testing"

	"github.com/kalambet/prefs/storage"
)

var _ storage.KVStore = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same directory and verifies
// migrations are not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestGetSetDelete(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}

	if err := s.Set("prefs_app_settings.toml", "count = 1\n"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("prefs_app_settings.toml", "count = 2\n"); err != nil {
		t.Fatalf("Set (overwrite): %v", err)
	}

	got, ok, err := s.Get("prefs_app_settings.toml")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got != "count = 2\n" {
		t.Errorf("Get = %q, want overwritten value", got)
	}

	at, ok, err := s.UpdatedAt("prefs_app_settings.toml")
	if err != nil || !ok || at.IsZero() {
		t.Errorf("UpdatedAt = %v, %v, %v", at, ok, err)
	}

	if err := s.Delete("prefs_app_settings.toml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("prefs_app_settings.toml"); ok {
		t.Error("key still present after Delete")
	}
	if err := s.Delete("prefs_app_settings.toml"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestKeysByPrefix(t *testing.T) {
	s := openTestStore(t)
	for _, k := range []string{"prefs_b_x", "prefs_a_y", "prefs_a_x", "other"} {
		if err := s.Set(k, "v"); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := s.Keys("prefs_a_")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "prefs_a_x" || keys[1] != "prefs_a_y" {
		t.Errorf("Keys = %v", keys)
	}
}

// TestPersistsAcrossOpen verifies values written to a file-backed store survive reopening.
func TestPersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, ok, err := s2.Get("k")
	if err != nil || !ok || got != "v" {
		t.Errorf("Get after reopen = %q, %v, %v", got, ok, err)
	}
}

// TestKVBackendOverSQLite exercises the store through storage.KVBackend.
func TestKVBackendOverSQLite(t *testing.T) {
	s := openTestStore(t)
	b := storage.NewKVBackend(s, "com.example.app")

	if err := b.Write("settings.toml", "a = true\n"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, ok, err := b.Read("settings.toml")
	if err != nil || !ok || got != "a = true\n" {
		t.Errorf("Read = %q, %v, %v", got, ok, err)
	}
	if desc := b.Describe("settings.toml"); desc != "sqlite::prefs_com_example_app_settings.toml" {
		t.Errorf("Describe = %q", desc)
	}
}
