package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	logx "healthvault/pkg/logx"
)

// DefaultStorageKey is the namespaced key existing installs used.
const DefaultStorageKey = "healthvault-reminders"

// Blobs is the persistence primitive the Store sits on.
// storage.KV satisfies it.
type Blobs interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type StoreConfig struct {
	// Key defaults to DefaultStorageKey.
	Key string
	// Strict makes Load fail with ErrStoreCorrupt instead of treating an
	// unparseable blob as an empty list.
	Strict bool
}

// Store persists the whole reminder sequence as one JSON array under one key.
// There is no indexing; the list is expected to stay small.
type Store struct {
	kv     Blobs
	key    string
	strict atomic.Bool
	log    logx.Logger
}

func NewStore(kv Blobs, cfg StoreConfig, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = DefaultStorageKey
	}
	s := &Store{kv: kv, key: key, log: log}
	s.strict.Store(cfg.Strict)
	return s
}

func (s *Store) Key() string { return s.key }

// SetStrict toggles strict loading at runtime (config reload).
func (s *Store) SetStrict(strict bool) { s.strict.Store(strict) }

// Load returns the persisted reminders in insertion order.
//
// A missing blob is an empty list. A blob that does not parse is an empty list
// too, unless the store is strict, in which case ErrStoreCorrupt is returned.
// Storage I/O errors are always returned.
func (s *Store) Load(ctx context.Context) ([]Reminder, error) {
	b, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}
	if !ok || len(strings.TrimSpace(string(b))) == 0 {
		return []Reminder{}, nil
	}

	var list []Reminder
	if err := json.Unmarshal(b, &list); err != nil {
		if s.strict.Load() {
			return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
		// Registrations made for the dropped records may still fire.
		s.log.Warn("reminder store unreadable; treating as empty",
			logx.String("key", s.key), logx.Int("bytes", len(b)), logx.Err(err))
		return []Reminder{}, nil
	}
	return s.dedupe(list), nil
}

// Save overwrites the persisted blob with list.
func (s *Store) Save(ctx context.Context, list []Reminder) error {
	if list == nil {
		list = []Reminder{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, b); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

// dedupe keeps the first record for every id.
func (s *Store) dedupe(list []Reminder) []Reminder {
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, r := range list {
		if _, dup := seen[r.ID]; dup {
			s.log.Warn("duplicate reminder id in store; keeping first", logx.String("id", r.ID))
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
