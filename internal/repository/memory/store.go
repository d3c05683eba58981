// Package memory provides an in-memory implementation of repository.Store.
// Writes run against a copy of the state that replaces the live state only
// when the whole operation succeeds.
package memory

import (
	"context"
	"sync"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/repository"
)

type state struct {
	zones       map[int64]models.Zone
	sites       map[int64]models.Site
	kinds       map[int64]models.PrecipitationKind
	units       map[int64]models.UnitOfMeasure
	instruments map[int64]models.Instrument
	samples     map[int64]models.Sample
	reports     map[int64]models.Report
	regulars    map[int64]models.RegularMeasurement // keyed by report id
	breakages   map[int64]models.InstrumentBreakage // keyed by report id
	seq         map[string]int64
}

func newState() *state {
	return &state{
		zones:       map[int64]models.Zone{},
		sites:       map[int64]models.Site{},
		kinds:       map[int64]models.PrecipitationKind{},
		units:       map[int64]models.UnitOfMeasure{},
		instruments: map[int64]models.Instrument{},
		samples:     map[int64]models.Sample{},
		reports:     map[int64]models.Report{},
		regulars:    map[int64]models.RegularMeasurement{},
		breakages:   map[int64]models.InstrumentBreakage{},
		seq:         map[string]int64{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *state) clone() *state {
	return &state{
		zones:       cloneMap(st.zones),
		sites:       cloneMap(st.sites),
		kinds:       cloneMap(st.kinds),
		units:       cloneMap(st.units),
		instruments: cloneMap(st.instruments),
		samples:     cloneMap(st.samples),
		reports:     cloneMap(st.reports),
		regulars:    cloneMap(st.regulars),
		breakages:   cloneMap(st.breakages),
		seq:         cloneMap(st.seq),
	}
}

func (st *state) next(table string) int64 {
	st.seq[table]++
	return st.seq[table]
}

// Store is a goroutine-safe in-memory store
type Store struct {
	mu    sync.RWMutex
	state *state
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{state: newState()}
}

// NewSeeded returns a store holding the same lookup rows the schema migration seeds
func NewSeeded() *Store {
	s := New()
	for _, kind := range []string{"lluvia", "nieve", "caudalimetro"} {
		id := s.state.next("precipitations")
		s.state.kinds[id] = models.PrecipitationKind{ID: id, Type: kind}
	}
	for _, u := range []struct {
		scale int64
		abbr  string
	}{{1, "mm"}, {10, "cm"}} {
		id := s.state.next("united_measures")
		s.state.units[id] = models.UnitOfMeasure{ID: id, ScaleValue: decimalFromInt(u.scale), Abbreviation: u.abbr}
	}
	return s
}

// read runs fn under the read lock
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return &repository.StorageError{Op: "read", Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// update runs fn on a copy of the state and publishes the copy when fn
// succeeds and ctx is still live
func (s *Store) update(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return &repository.StorageError{Op: "begin", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(draft); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &repository.StorageError{Op: "commit", Err: err}
	}
	s.state = draft
	return nil
}

// HealthCheck always succeeds for the in-memory store
func (s *Store) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}
