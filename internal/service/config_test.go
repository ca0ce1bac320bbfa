package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeblew999/plat-landuse/internal/style"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.Layers) != 5 {
		t.Fatalf("layers=%d, want 5", len(cfg.Layers))
	}
	if len(cfg.BaseMaps) != 2 {
		t.Fatalf("baseMaps=%d, want 2", len(cfg.BaseMaps))
	}

	keys := map[string]string{}
	for _, l := range cfg.Layers {
		keys[l.ID] = l.CategoryKey
	}
	if keys["proposed_land_use"] != "LAND_USE" {
		t.Errorf("proposed key=%q", keys["proposed_land_use"])
	}
	if keys["existing_land_use_2023"] != "land_use" {
		t.Errorf("existing key=%q", keys["existing_land_use_2023"])
	}
}

func TestDefaultTables(t *testing.T) {
	layers := newTestLayers(t)

	proposed, ok := layers.Table("proposed")
	if !ok {
		t.Fatal("proposed table missing")
	}
	want := map[string]string{
		"Commercial":     "#59a8e4",
		"Educational":    "#9822dc",
		"Industrial":     "#77e5d4",
		"MixedUse":       "#35c857",
		"Recreational":   "#83c95a",
		"Residential":    "#e8863b",
		"Transportation": "#d4566b",
		"PublicUtility":  "#ce5eb4",
		"PublicPurpose":  "#d43fc5",
	}
	for category, fill := range want {
		got := proposed.Lookup(category)
		if got != (style.CategoryStyle{Color: "#232323", FillColor: fill, FillOpacity: 0.5}) {
			t.Errorf("%s: %+v", category, got)
		}
	}
	if d := proposed.Default(); d.FillColor != "#f0f0f0" || d.FillOpacity != 0.3 {
		t.Errorf("default=%+v", d)
	}

	existing, _ := layers.Table("existing")
	if got := existing.Lookup("Transport").FillColor; got != "#d4566b" {
		t.Errorf("existing Transport=%q", got)
	}
	if existing.Has("Educational") {
		t.Error("existing table should not contain Educational")
	}
}

func TestLegend(t *testing.T) {
	items := newTestLayers(t).Legend()
	if len(items) != 9 {
		t.Fatalf("legend items=%d, want 9", len(items))
	}
	if items[0].Label != "Commercial" || items[7].Label != "Public Utility" {
		t.Fatalf("legend order/labels: %+v", items)
	}
	if items[7].Color != "#ce5eb4" || items[7].Stroke != "#232323" {
		t.Fatalf("legend colors: %+v", items[7])
	}
}

func TestParseConfig_Errors(t *testing.T) {
	cases := map[string]string{
		"no layers":     `title: x`,
		"no file":       "layers:\n  - name: A\n",
		"unknown table": "layers:\n  - name: A\n    file: a.geojson\n    table: nope\n",
		"duplicate id":  "layers:\n  - name: A\n    file: a.geojson\n  - name: a\n    file: b.geojson\n",
		"bad yaml":      "layers: [",
		"popup key":     "layers:\n  - name: A\n    file: a.geojson\n    popup: {label: X}\n",
		"legend table":  "layers:\n  - name: A\n    file: a.geojson\nlegend: {table: nope}\n",
	}
	for name, doc := range cases {
		if _, err := ParseConfig([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseConfig_GeneratesIDs(t *testing.T) {
	cfg, err := ParseConfig([]byte("layers:\n  - name: Proposed Roads (2024)\n    file: roads.geojson\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Layers[0].ID != "proposed_roads_2024" {
		t.Fatalf("id=%q", cfg.Layers[0].ID)
	}
}

func TestNewLayerService_TableWithoutDefault(t *testing.T) {
	cfg, err := ParseConfig([]byte(strings.Join([]string{
		"layers:",
		"  - name: A",
		"    file: a.geojson",
		"    table: t",
		"tables:",
		"  t:",
		"    stroke: '#000'",
		"    categories: [{name: X, fillColor: '#fff'}]",
	}, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewLayerService(cfg); !errors.Is(err, style.ErrNoDefault) {
		t.Fatalf("err=%v, want ErrNoDefault", err)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil || cfg.Title == "" {
		t.Fatalf("default: cfg=%v err=%v", cfg, err)
	}

	path := filepath.Join(t.TempDir(), "map.yaml")
	doc := "title: Test\nlayers:\n  - name: Parcels\n    file: parcels.geojson\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Title != "Test" || cfg.Layers[0].ID != "parcels" {
		t.Fatalf("cfg=%+v", cfg)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
