package service

import (
	"context"
	"sync"
)

// Indexer receives every successfully loaded map.
type Indexer interface {
	Index(ctx context.Context, m *Map) error
}

// MapService owns the published map. Loads are all or nothing: a failed
// load never replaces the published map.
type MapService struct {
	layers    *LayerService
	assembler *Assembler
	bus       *EventBus
	indexer   Indexer

	// loadMu serializes loads so the published map and the index always
	// come from the same, most recently started load.
	loadMu sync.Mutex

	mu      sync.RWMutex
	current *Map
	lastErr error
}

// NewMapService creates a map service with an empty published map.
func NewMapService(layers *LayerService, assembler *Assembler, bus *EventBus) *MapService {
	if bus == nil {
		bus = NewEventBus()
	}
	return &MapService{
		layers:    layers,
		assembler: assembler,
		bus:       bus,
		current:   &Map{},
	}
}

// SetIndexer registers an indexer fed after each successful load.
func (s *MapService) SetIndexer(ix Indexer) {
	s.indexer = ix
}

// Load assembles the map and publishes it on success. Indexing failures
// are logged and do not fail the load. Concurrent calls run one at a time.
func (s *MapService) Load(ctx context.Context) (*Map, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	m, err := s.assembler.Assemble(ctx)
	if err == nil && s.indexer != nil {
		if ierr := s.indexer.Index(ctx, m); ierr != nil {
			s.assembler.logger.Warn("indexing map features", "err", ierr)
		}
	}

	s.mu.Lock()
	if err == nil {
		s.current = m
	}
	s.lastErr = err
	published := len(s.current.Overlays)
	s.mu.Unlock()

	ev := Event{Resource: "map", Action: "loaded", Overlays: published}
	if err != nil {
		ev.Action = "failed"
		ev.Err = err.Error()
	}
	s.bus.Publish(ev)

	if err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the published map. It is never nil.
func (s *MapService) Current() *Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LastError returns the error of the most recent load, if it failed.
func (s *MapService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Layers returns the layer configuration backing the map.
func (s *MapService) Layers() *LayerService {
	return s.layers
}

// Bus returns the event bus map changes are published on.
func (s *MapService) Bus() *EventBus {
	return s.bus
}
