// Package store holds an evidence collection with upsert-by-id semantics,
// filtered querying, and lossless JSON persistence.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mbrg/raptor/internal/evidence"
	"github.com/mbrg/raptor/internal/verify"
)

// Store is a single-owner, in-process evidence collection. Mutations are
// serialized behind a RWMutex so readers never observe a partially-updated
// index.
type Store struct {
	mu    sync.RWMutex
	items []evidence.Evidence
	byID  map[string]struct{}
}

func New(items ...evidence.Evidence) *Store {
	s := &Store{byID: make(map[string]struct{})}
	s.AddAll(items)
	return s
}

// Add upserts a record by evidence id. Re-adding an id replaces the prior
// record entirely and moves it to the end of iteration order.
func (s *Store) Add(ev evidence.Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(ev)
}

// AddAll upserts records sequentially, with the same semantics as Add.
func (s *Store) AddAll(items []evidence.Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range items {
		s.addLocked(ev)
	}
}

func (s *Store) addLocked(ev evidence.Evidence) {
	if _, ok := s.byID[ev.ID()]; ok {
		s.items = removeID(s.items, ev.ID())
	}
	s.items = append(s.items, ev)
	s.byID[ev.ID()] = struct{}{}
}

func removeID(items []evidence.Evidence, id string) []evidence.Evidence {
	kept := items[:0]
	for _, e := range items {
		if e.ID() != id {
			kept = append(kept, e)
		}
	}
	return kept
}

// Get returns the record with the given id, or ok=false.
func (s *Store) Get(id string) (evidence.Evidence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[id]; !ok {
		return nil, false
	}
	for _, e := range s.items {
		if e.ID() == id {
			return e, true
		}
	}
	return nil, false
}

// Remove deletes the record with the given id. It reports whether a record
// existed and was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	s.items = removeID(s.items, id)
	return true
}

// Clear removes all records.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.byID = make(map[string]struct{})
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// All returns a snapshot of the collection in insertion order.
func (s *Store) All() []evidence.Evidence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]evidence.Evidence, len(s.items))
	copy(out, s.items)
	return out
}

// Events returns the records tagged with an event discriminator.
func (s *Store) Events() []evidence.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []evidence.Event
	for _, e := range s.items {
		if ev, ok := e.(evidence.Event); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Observations returns the records tagged with an observation discriminator.
func (s *Store) Observations() []evidence.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []evidence.Observation
	for _, e := range s.items {
		if obs, ok := e.(evidence.Observation); ok {
			out = append(out, obs)
		}
	}
	return out
}

// Criteria selects records; all supplied criteria are ANDed. Time bounds
// are inclusive and use the record's resolved timestamp; records with no
// resolvable timestamp are excluded only from time-bounded queries.
type Criteria struct {
	EventType       evidence.EventType
	ObservationType evidence.ObservationType
	Source          evidence.Source
	Repo            string // repository full_name
	After           *time.Time
	Before          *time.Time
	Predicate       func(evidence.Evidence) bool
}

// Filter returns the records matching all supplied criteria, in insertion
// order.
func (s *Store) Filter(c Criteria) []evidence.Evidence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []evidence.Evidence
	for _, e := range s.items {
		if matches(e, c) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e evidence.Evidence, c Criteria) bool {
	if c.EventType != "" {
		ev, ok := e.(evidence.Event)
		if !ok || ev.EventType() != c.EventType {
			return false
		}
	}
	if c.ObservationType != "" {
		obs, ok := e.(evidence.Observation)
		if !ok || obs.ObservationType() != c.ObservationType {
			return false
		}
	}
	if c.Source != "" && e.VerificationInfo().Source != c.Source {
		return false
	}
	if c.Repo != "" {
		repo := e.Repo()
		if repo == nil || repo.FullName != c.Repo {
			return false
		}
	}
	if c.After != nil || c.Before != nil {
		ts, ok := e.Timestamp()
		if !ok {
			return false
		}
		if c.After != nil && ts.Before(*c.After) {
			return false
		}
		if c.Before != nil && ts.After(*c.Before) {
			return false
		}
	}
	if c.Predicate != nil && !c.Predicate(e) {
		return false
	}
	return true
}

// Merge upserts every record from another store, with the same identity
// replacement semantics as Add.
func (s *Store) Merge(other *Store) {
	s.AddAll(other.All())
}

// Summary counts records by discriminator and verification source.
type Summary struct {
	Total        int            `json:"total"`
	Events       map[string]int `json:"events"`
	Observations map[string]int `json:"observations"`
	BySource     map[string]int `json:"by_source"`
}

func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := Summary{
		Total:        len(s.items),
		Events:       make(map[string]int),
		Observations: make(map[string]int),
		BySource:     make(map[string]int),
	}
	for _, e := range s.items {
		switch v := e.(type) {
		case evidence.Event:
			sum.Events[string(v.EventType())]++
		case evidence.Observation:
			sum.Observations[string(v.ObservationType())]++
		}
		sum.BySource[string(e.VerificationInfo().Source)]++
	}
	return sum
}

// ToJSON serializes the collection to a JSON array of flat records, each
// carrying its discriminator. The array is the entire persisted contract.
func (s *Store) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]json.RawMessage, 0, len(s.items))
	for _, e := range s.items {
		raw, err := evidence.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("serializing record %q: %w", e.ID(), err)
		}
		records = append(records, raw)
	}
	return json.MarshalIndent(records, "", "  ")
}

// FromJSON builds a store from a persisted JSON array, rejecting records
// with unknown or missing discriminators.
func FromJSON(data []byte) (*Store, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding evidence array: %w", err)
	}
	s := New()
	for i, raw := range records {
		ev, err := evidence.Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		s.Add(ev)
	}
	return s, nil
}

// Save writes the collection to path, creating intermediate directories.
// The write goes through a temp file and rename so a crash never leaves a
// truncated store behind.
func (s *Store) Save(path string) error {
	data, err := s.ToJSON()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".evidence-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Load reads a collection previously written by Save.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromJSON(data)
}

// VerifyAll reconciles every record against its source via the given
// verifier and returns the aggregate report.
func (s *Store) VerifyAll(ctx context.Context, v verify.BatchVerifier) verify.Report {
	return v.VerifyAll(ctx, s.All())
}
