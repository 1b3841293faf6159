package keystore

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// keySet is an immutable credential snapshot. A new one is built on every
// successful load and installed with a single atomic pointer swap; readers
// therefore see either the fully-old or fully-new set, never a mix.
type keySet struct {
	keys     map[string]struct{}
	revision int64
	loadedAt time.Time
}

// Store holds the current credential set. IsValid is safe for unbounded
// concurrent readers and never blocks on I/O; only Load touches the Source.
type Store struct {
	src Source
	log zerolog.Logger

	mu  sync.Mutex // serializes writers (startup load + admin reloads)
	cur atomic.Pointer[keySet]
}

func NewStore(src Source, log zerolog.Logger) *Store {
	return &Store{src: src, log: log}
}

// Load fetches the latest secret payload, parses it and atomically replaces
// the in-memory set. On any failure the previous set (if any) is retained
// unchanged and a *FetchError is returned: a failed reload must never leave
// the gateway with zero credentials if it previously had a valid set.
//
// The payload is a JSON object mapping key names to key values:
//
//	{"service-a": "sk-abc...", "service-b": "sk-def..."}
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.src.Fetch(ctx)
	if err != nil {
		return &FetchError{Source: s.src.Describe(), Err: err}
	}
	var named map[string]string
	if err := json.Unmarshal(raw, &named); err != nil {
		return &FetchError{Source: s.src.Describe(), Err: err}
	}

	keys := make(map[string]struct{}, len(named))
	for _, k := range named {
		if k != "" {
			keys[k] = struct{}{}
		}
	}

	var rev int64 = 1
	if old := s.cur.Load(); old != nil {
		rev = old.revision + 1
	}
	s.cur.Store(&keySet{keys: keys, revision: rev, loadedAt: time.Now()})

	if len(keys) == 0 {
		s.log.Warn().Msg("credential set is empty, all requests will be rejected")
	} else {
		s.log.Info().Int("keys", len(keys)).Int64("revision", rev).Msg("credentials loaded")
	}
	return nil
}

// IsValid performs an O(1) membership check against the current set.
func (s *Store) IsValid(key string) bool {
	if key == "" {
		return false
	}
	set := s.cur.Load()
	if set == nil {
		return false
	}
	_, ok := set.keys[key]
	return ok
}

// Count returns the number of credentials in the current set.
func (s *Store) Count() int {
	set := s.cur.Load()
	if set == nil {
		return 0
	}
	return len(set.keys)
}

// Revision returns the revision marker of the last successful load,
// zero when nothing has been loaded yet.
func (s *Store) Revision() int64 {
	set := s.cur.Load()
	if set == nil {
		return 0
	}
	return set.revision
}
