package service

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMapService_Load(t *testing.T) {
	f := &stubFetcher{base: NewDirFetcher(testdataDir), fail: map[string]error{}}
	a, _ := newTestAssembler(t, f)
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	s := NewMapService(a.layers, a, bus)
	if got := len(s.Current().Overlays); got != 0 {
		t.Fatalf("initial overlays=%d", got)
	}

	if _, err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Current().Overlays); got != 5 {
		t.Fatalf("overlays=%d, want 5", got)
	}
	ev := receive(t, ch)
	if ev.Action != "loaded" || ev.Overlays != 5 {
		t.Fatalf("event=%+v", ev)
	}

	// A failed reload keeps the published map.
	f.fail["data/proposed_landUse.geojson"] = errUnreachable
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := len(s.Current().Overlays); got != 5 {
		t.Fatalf("overlays after failed reload=%d, want 5", got)
	}
	if s.LastError() == nil {
		t.Fatal("LastError not recorded")
	}
	ev = receive(t, ch)
	if ev.Action != "failed" || ev.Err == "" {
		t.Fatalf("event=%+v", ev)
	}
}

func TestMapService_FailedStartup(t *testing.T) {
	a, _ := newTestAssembler(t, NewDirFetcher(t.TempDir()))
	s := NewMapService(a.layers, a, nil)
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.Current() == nil || len(s.Current().Overlays) != 0 {
		t.Fatalf("expected empty map, got %+v", s.Current())
	}
}

// gateFetcher holds the first fetch of name until release is closed and
// answers it with stale instead of the real file.
type gateFetcher struct {
	base    Fetcher
	name    string
	stale   []byte
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (f *gateFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if name == f.name {
		first := false
		f.once.Do(func() { first = true })
		if first {
			close(f.entered)
			<-f.release
			return f.stale, nil
		}
	}
	return f.base.Fetch(ctx, name)
}

// lastIndexer remembers the most recently indexed map.
type lastIndexer struct {
	mu   sync.Mutex
	last *Map
}

func (ix *lastIndexer) Index(_ context.Context, m *Map) error {
	ix.mu.Lock()
	ix.last = m
	ix.mu.Unlock()
	return nil
}

func TestMapService_OverlappingLoads(t *testing.T) {
	gate := &gateFetcher{
		base:    NewDirFetcher(testdataDir),
		name:    "data/land_parcels.geojson",
		stale:   []byte(`{"type":"FeatureCollection","features":[]}`),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	a, _ := newTestAssembler(t, gate)
	s := NewMapService(a.layers, a, nil)
	ix := &lastIndexer{}
	s.SetIndexer(ix)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Load(context.Background())
	}()
	<-gate.entered

	go func() {
		defer wg.Done()
		s.Load(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate.release)
	wg.Wait()

	cur := s.Current()
	o, ok := cur.Overlay("land_parcels")
	if !ok {
		t.Fatal("land_parcels not published")
	}
	if o.Features != 2 {
		t.Fatalf("land_parcels features=%d, want 2 from the later load", o.Features)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.last != cur {
		t.Fatal("indexed map differs from the published map")
	}
}

func TestEventBus_SlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for i := 0; i < 32; i++ {
		bus.Publish(Event{Resource: "map", Action: "loaded", Overlays: i})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered=%d, want %d", len(ch), cap(ch))
	}
}

func receive(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return Event{}
}
