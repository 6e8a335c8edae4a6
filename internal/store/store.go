// Package store implements the Config Store (spec.md §4.6): a file-backed
// mapping from account_key to an Account credentials record, with
// migration from a legacy single-record layout.
//
// Writes use atomic file replacement (write to .tmp, then rename) to
// prevent corruption from partial writes or crashes mid-save, the same
// crash-safety idiom the teacher used for position persistence.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gridbot/pkg/types"
)

// Store persists account records to a single JSON file.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open creates a store backed by the given JSON file path. The parent
// directory is created here; the file itself is created on first Save.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{path: path}, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error { return nil }

// load reads the persisted map, migrating a legacy single-record layout
// (a record at the top level rather than keyed by account_key) into the
// keyed form in memory. The file itself is only rewritten on the next
// Save-family call.
func (s *Store) load() (map[string]types.Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]types.Account{}, nil
		}
		return nil, fmt.Errorf("read config store: %w", err)
	}
	if len(data) == 0 {
		return map[string]types.Account{}, nil
	}

	// Legacy layout: a single record at the top level, detected by the
	// presence of "name" and "api_key" fields where a keyed map would
	// instead have account_key strings at the top level.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("unmarshal config store: %w", err)
	}
	if _, hasName := probe["name"]; hasName {
		if _, hasKey := probe["api_key"]; hasKey {
			var legacy types.Account
			if err := json.Unmarshal(data, &legacy); err != nil {
				return nil, fmt.Errorf("unmarshal legacy config: %w", err)
			}
			key := legacy.AccountKey
			if key == "" {
				key = strings.ToLower(legacy.Venue)
			}
			legacy.AccountKey = key
			if legacy.AccountAlias == "" {
				legacy.AccountAlias = defaultAlias(legacy.Venue)
			}
			return map[string]types.Account{key: legacy}, nil
		}
	}

	var all map[string]types.Account
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("unmarshal config store: %w", err)
	}
	if all == nil {
		all = map[string]types.Account{}
	}
	return all, nil
}

// save atomically persists the full map in canonical keyed form.
func (s *Store) save(all map[string]types.Account) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config store: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// GetAccountConfig returns the record for account_key, or (Account{}, false)
// if not found.
func (s *Store) GetAccountConfig(accountKey string) (types.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return types.Account{}, false
	}
	acc, ok := all[accountKey]
	return acc, ok
}

// ListAccounts returns every persisted account, keyed by account_key.
func (s *Store) ListAccounts() (map[string]types.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// HasConfig reports whether any account is persisted.
func (s *Store) HasConfig() bool {
	all, err := s.ListAccounts()
	return err == nil && len(all) > 0
}

// SaveExchangeConfig persists rec under venueName, generating an
// account_key and alias when rec doesn't carry them (spec.md §4.6):
//
//   - account_key: "<venue_name>", or "<venue_name>_<n>" for the smallest
//     n >= 1 that doesn't collide with an existing key.
//   - account_alias: "<Venue> account".
//
// Returns the assigned account_key.
func (s *Store) SaveExchangeConfig(venueName string, rec types.Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return "", err
	}

	rec.Venue = strings.ToLower(venueName)

	key := rec.AccountKey
	if key == "" {
		key = strings.ToLower(venueName)
		for n := 1; ; n++ {
			if _, collide := all[key]; !collide {
				break
			}
			key = fmt.Sprintf("%s_%d", strings.ToLower(venueName), n)
		}
	}
	rec.AccountKey = key

	if rec.AccountAlias == "" {
		rec.AccountAlias = defaultAlias(venueName)
	}

	all[key] = rec
	if err := s.save(all); err != nil {
		return "", err
	}
	return key, nil
}

// DeleteAccountConfig removes a record. Returns false if it did not exist.
func (s *Store) DeleteAccountConfig(accountKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := all[accountKey]; !ok {
		return false, nil
	}
	delete(all, accountKey)
	if err := s.save(all); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes every persisted account.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(map[string]types.Account{})
}

func defaultAlias(venueName string) string {
	if venueName == "" {
		return "Unknown account"
	}
	return strings.ToUpper(venueName[:1]) + venueName[1:] + " account"
}
