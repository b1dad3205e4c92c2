package config

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
)

const (
	DefaultTheme = "default"
	DefaultSort  = "unread"
)

// Account is a persisted login.
type Account struct {
	Homeserver  string `toml:"homeserver"`
	UserID      string `toml:"user_id"`
	AccessToken string `toml:"access_token"`
	DeviceID    string `toml:"device_id"`
}

// Config is the per-profile ~/.matrixtui/<profile>/config.toml.
type Config struct {
	Theme     string    `toml:"theme"`
	RoomSort  string    `toml:"room_sort"`
	Favorites []string  `toml:"favorites"`
	Accounts  []Account `toml:"accounts"`
}

// Global is the profile-independent ~/.matrixtui/config.toml.
type Global struct {
	DefaultProfile string `toml:"default_profile"`
}

// Default returns an empty config with default theme and sort.
func Default() *Config {
	return &Config{Theme: DefaultTheme, RoomSort: DefaultSort}
}

// Load reads config from path. A missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Theme == "" {
		cfg.Theme = DefaultTheme
	}
	if cfg.RoomSort == "" {
		cfg.RoomSort = DefaultSort
	}
	return cfg, nil
}

// LoadGlobal reads the global config.
func LoadGlobal(path string) (*Global, error) {
	var g Global
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Save writes v as TOML to path, creating parent dirs as needed.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Favorites = slices.Clone(c.Favorites)
	out.Accounts = slices.Clone(c.Accounts)
	return &out
}

// AddAccount stores a, replacing any entry with the same user id.
func (c *Config) AddAccount(a Account) {
	c.RemoveAccount(a.UserID)
	c.Accounts = append(c.Accounts, a)
}

// RemoveAccount drops the account with userID and reports whether it existed.
func (c *Config) RemoveAccount(userID string) bool {
	n := len(c.Accounts)
	c.Accounts = slices.DeleteFunc(c.Accounts, func(a Account) bool { return a.UserID == userID })
	return len(c.Accounts) != n
}

// Account looks up a saved account by user id.
func (c *Config) Account(userID string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.UserID == userID {
			return a, true
		}
	}
	return Account{}, false
}

// IsFavorite reports whether roomID is pinned.
func (c *Config) IsFavorite(roomID string) bool {
	return slices.Contains(c.Favorites, roomID)
}

// ToggleFavorite pins or unpins roomID and returns the new pinned state.
func (c *Config) ToggleFavorite(roomID string) bool {
	if i := slices.Index(c.Favorites, roomID); i >= 0 {
		c.Favorites = slices.Delete(c.Favorites, i, i+1)
		return false
	}
	c.Favorites = append(c.Favorites, roomID)
	return true
}

// MoveFavorite shifts roomID by delta positions within the favorite list.
// It reports false when roomID is not pinned or the move leaves the list.
func (c *Config) MoveFavorite(roomID string, delta int) bool {
	i := slices.Index(c.Favorites, roomID)
	j := i + delta
	if i < 0 || j < 0 || j >= len(c.Favorites) {
		return false
	}
	c.Favorites[i], c.Favorites[j] = c.Favorites[j], c.Favorites[i]
	return true
}

// ForgetRoom removes roomID from favorites.
func (c *Config) ForgetRoom(roomID string) {
	c.Favorites = slices.DeleteFunc(c.Favorites, func(id string) bool { return id == roomID })
}
