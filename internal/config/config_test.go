package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := &Config{
		Theme:     "nord",
		RoomSort:  "recent",
		Favorites: []string{"!b:hs", "!a:hs"},
		Accounts: []Account{
			{Homeserver: "https://matrix.org", UserID: "@alice:matrix.org", AccessToken: "tok", DeviceID: "DEV"},
		},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("favorites = [\"!a:hs\"]\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Theme != DefaultTheme || cfg.RoomSort != DefaultSort {
		t.Errorf("defaults = (%q, %q)", cfg.Theme, cfg.RoomSort)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestAddAccountReplacesSameUser(t *testing.T) {
	cfg := Default()
	cfg.AddAccount(Account{UserID: "@a:hs", AccessToken: "old"})
	cfg.AddAccount(Account{UserID: "@b:hs", AccessToken: "b"})
	cfg.AddAccount(Account{UserID: "@a:hs", AccessToken: "new"})

	if len(cfg.Accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(cfg.Accounts))
	}
	a, ok := cfg.Account("@a:hs")
	if !ok || a.AccessToken != "new" {
		t.Errorf("Account(@a:hs) = %+v, %v", a, ok)
	}
}

func TestFavorites(t *testing.T) {
	cfg := Default()
	if !cfg.ToggleFavorite("!a") || !cfg.ToggleFavorite("!b") || !cfg.ToggleFavorite("!c") {
		t.Fatal("ToggleFavorite should pin new rooms")
	}
	if !cfg.MoveFavorite("!c", -1) {
		t.Fatal("MoveFavorite(!c, -1) = false")
	}
	if diff := cmp.Diff([]string{"!a", "!c", "!b"}, cfg.Favorites); diff != "" {
		t.Errorf("favorites (-want +got):\n%s", diff)
	}
	if cfg.MoveFavorite("!a", -1) {
		t.Error("moving the first favorite up should fail")
	}
	if cfg.MoveFavorite("!zzz", 1) {
		t.Error("moving an unpinned room should fail")
	}
	if cfg.ToggleFavorite("!c") {
		t.Error("second toggle should unpin")
	}
	cfg.ForgetRoom("!a")
	if diff := cmp.Diff([]string{"!b"}, cfg.Favorites); diff != "" {
		t.Errorf("favorites (-want +got):\n%s", diff)
	}
}

func TestStoreUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	s, err := OpenStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	s.Update(func(c *Config) { c.RoomSort = "alpha" })

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RoomSort != "alpha" {
		t.Errorf("RoomSort = %q, want alpha", loaded.RoomSort)
	}
}

func TestStoreConfigIsCopy(t *testing.T) {
	s := NewMemoryStore(nil, zap.NewNop())
	s.Update(func(c *Config) { c.Favorites = []string{"!a"} })
	snap := s.Config()
	snap.Favorites[0] = "!mutated"
	if got := s.Config().Favorites[0]; got != "!a" {
		t.Errorf("store leaked internal slice, favorites[0] = %q", got)
	}
}

func TestStoreSaveErrorIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	s := &Store{path: filepath.Join(blocker, "config.toml"), cfg: Default(), logger: zap.NewNop()}
	s.Update(func(c *Config) { c.Theme = "x" })
	if s.Config().Theme != "x" {
		t.Error("in-memory update lost after failed save")
	}
}
