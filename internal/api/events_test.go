package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joeblew999/plat-landuse/internal/templates"
	"github.com/joeblew999/plat-landuse/web"
)

func TestNewStatus(t *testing.T) {
	f := newFixture(t)

	st := NewStatus(f.svc.Map)
	if st.Loaded || st.Error != "" {
		t.Fatalf("initial status=%+v", st)
	}

	f.load(t)
	st = NewStatus(f.svc.Map)
	if !st.Loaded || st.Overlays != 5 || st.LoadedAt == "" {
		t.Fatalf("loaded status=%+v", st)
	}

	f.fetcher.down.Store(true)
	f.svc.Map.Load(context.Background())
	st = NewStatus(f.svc.Map)
	if !st.Loaded || st.Error == "" {
		t.Fatalf("status after failed reload=%+v", st)
	}
}

func TestEvents_StreamsReloads(t *testing.T) {
	f := newFixture(t)
	renderer, err := templates.New(web.FS)
	if err != nil {
		t.Fatal(err)
	}
	NewEventHandler(f.svc.Map, renderer).RegisterRoutes(f.api)

	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type=%q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(substr string) {
		t.Helper()
		for lines.Scan() {
			if strings.Contains(lines.Text(), substr) {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", substr, lines.Err())
	}

	waitFor("Loading map data")

	go f.svc.Map.Load(context.Background())
	waitFor("5 layers loaded")
	waitFor("map-changed")
}
