package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
)

// FileEventStore is the timeline kept as a hash-chained JSON Lines file.
type FileEventStore struct {
	mu       sync.RWMutex
	path     string
	basePath string
	lastHash string
}

// NewFileEventStore opens the store in basePath. The directory is created on
// first write.
func NewFileEventStore(basePath string) (*FileEventStore, error) {
	store := &FileEventStore{path: filepath.Join(basePath, TimelineFile), basePath: basePath}

	evts, err := store.loadEvents()
	if err != nil {
		return nil, err
	}
	if n := len(evts); n > 0 {
		store.lastHash = evts[n-1].Hash
	}
	return store, nil
}

// Path returns the JSON Lines file.
func (s *FileEventStore) Path() string {
	return s.path
}

// AppendEvent chains e to the previous event and writes it.
func (s *FileEventStore) AppendEvent(_ context.Context, e *timeline.Event) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if err := os.MkdirAll(s.basePath, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	e.PrevHash = s.lastHash
	e.Hash = e.CalculateHash()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open timeline file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close timeline file: %w", cerr)
		}
	}()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	s.lastHash = e.Hash
	return nil
}

// LoadAll returns every event in append order.
func (s *FileEventStore) LoadAll() ([]timeline.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadEvents()
}

func (s *FileEventStore) filter(keep func(timeline.Event) bool) ([]timeline.Event, error) {
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	var out []timeline.Event
	for _, e := range all {
		if keep(e) {
			out = append(out, e)
		}
	}
	timeline.SortChronological(out)
	return out, nil
}

func (s *FileEventStore) ListByJourney(_ context.Context, journeyID string) ([]timeline.Event, error) {
	return s.filter(func(e timeline.Event) bool { return e.JourneyID == journeyID })
}

func (s *FileEventStore) ListByUser(_ context.Context, userID string) ([]timeline.Event, error) {
	return s.filter(func(e timeline.Event) bool { return e.UserID == userID })
}

// Count returns the total number of events.
func (s *FileEventStore) Count() (int, error) {
	evts, err := s.LoadAll()
	if err != nil {
		return 0, err
	}
	return len(evts), nil
}

// VerifyIntegrity checks the hash chain and that every journey's events
// start with its started event and never go back in time.
func (s *FileEventStore) VerifyIntegrity(_ context.Context) ([]string, error) {
	evts, err := s.LoadAll()
	if err != nil {
		return nil, err
	}

	var violations []string
	lastHash := ""
	byJourney := map[string][]timeline.Event{}
	for i, e := range evts {
		if e.PrevHash != lastHash {
			violations = append(violations, fmt.Sprintf("Event %d (%s): PrevHash mismatch", i, e.ID))
		}
		if e.Hash != e.CalculateHash() {
			violations = append(violations, fmt.Sprintf("Event %d (%s): Hash mismatch - possible tampering", i, e.ID))
		}
		lastHash = e.Hash
		byJourney[e.JourneyID] = append(byJourney[e.JourneyID], e)
	}

	ids := make([]string, 0, len(byJourney))
	for id := range byJourney {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		evs := byJourney[id]
		switch i := timeline.CheckMonotonic(evs); {
		case i == 0:
			violations = append(violations, fmt.Sprintf("Journey %s: first event is %s, not started", id, evs[0].Type))
		case i > 0:
			violations = append(violations, fmt.Sprintf("Journey %s: event %s goes back in time", id, evs[i].ID))
		}
	}
	return violations, nil
}

func (s *FileEventStore) loadEvents() ([]timeline.Event, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open timeline file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var result []timeline.Event
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e timeline.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		result = append(result, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan timeline: %w", err)
	}
	return result, nil
}
