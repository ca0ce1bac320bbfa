//go:build integration

// Integration test against a running server: landuse --data-dir <data>
//
// Run: go test -tags=integration ./cmd/landuse/
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
)

func baseURL() string {
	if u := os.Getenv("LANDUSE_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8086"
}

func getJSON(t *testing.T, path string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(baseURL() + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s: %v", path, err)
		}
	}
	return resp
}

func TestHealth(t *testing.T) {
	var body struct {
		Status string `json:"status"`
	}
	getJSON(t, "/health", &body)
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestGetInfo(t *testing.T) {
	var body struct {
		Name string `json:"name"`
	}
	getJSON(t, "/api/v1/info", &body)
	if body.Name != "plat-landuse" {
		t.Fatalf("name=%q, want plat-landuse", body.Name)
	}
}

func TestMapAndLayers(t *testing.T) {
	var m struct {
		Loaded   bool `json:"loaded"`
		Overlays []struct {
			ID   string `json:"id"`
			Href string `json:"href"`
		} `json:"overlays"`
	}
	getJSON(t, "/api/v1/map", &m)
	if !m.Loaded {
		t.Skip("server has no map loaded")
	}

	for _, o := range m.Overlays {
		resp := getJSON(t, o.Href, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status=%d", o.ID, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
			t.Errorf("%s: Content-Type=%q", o.ID, ct)
		}
	}
}

func TestViewer(t *testing.T) {
	resp, err := http.Get(baseURL() + "/viewer")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}
