// Package service contains the map assembly logic for plat-landuse.
package service

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-landuse/internal/style"
)

// MapConfig is the declarative map definition, read from YAML.
type MapConfig struct {
	Title       string                       `yaml:"title" json:"title"`
	Description string                       `yaml:"description" json:"description"`
	Center      [2]float64                   `yaml:"center" json:"center"`
	Zoom        int                          `yaml:"zoom" json:"zoom"`
	BaseMaps    []BaseMap                    `yaml:"baseMaps" json:"baseMaps"`
	Layers      []LayerConfig                `yaml:"layers" json:"layers"`
	Tables      map[string]style.TableConfig `yaml:"tables" json:"tables"`
	Legend      LegendConfig                 `yaml:"legend" json:"legend"`
}

// BaseMap is a tile layer the viewer can switch between.
type BaseMap struct {
	Name        string `yaml:"name" json:"name" doc:"Display name" example:"OpenStreetMap"`
	URL         string `yaml:"url" json:"url" doc:"Tile URL template" example:"https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"`
	Attribution string `yaml:"attribution" json:"attribution" doc:"Attribution HTML"`
	Default     bool   `yaml:"default,omitempty" json:"default" doc:"Shown on load"`
}

// LayerConfig describes one GeoJSON overlay.
//
// CategoryKey is the feature property holding the category used for Table
// lookups. It is set per layer because the source data is not consistent
// (LAND_USE vs land_use).
type LayerConfig struct {
	ID          string       `yaml:"id,omitempty" json:"id"`
	Name        string       `yaml:"name" json:"name"`
	File        string       `yaml:"file" json:"file"`
	Table       string       `yaml:"table,omitempty" json:"table,omitempty"`
	CategoryKey string       `yaml:"categoryKey,omitempty" json:"categoryKey,omitempty"`
	Popup       *PopupConfig `yaml:"popup,omitempty" json:"popup,omitempty"`
	Visible     bool         `yaml:"visible,omitempty" json:"visible"`
}

// PopupConfig enables click popups on a layer.
type PopupConfig struct {
	CategoryKey string `yaml:"categoryKey" json:"categoryKey"`
	Label       string `yaml:"label,omitempty" json:"label,omitempty"`
	AreaKey     string `yaml:"areaKey,omitempty" json:"areaKey,omitempty"`
}

// LegendConfig selects the table rendered as the map legend.
type LegendConfig struct {
	Title string `yaml:"title" json:"title"`
	Table string `yaml:"table" json:"table"`
}

// LegendItem is one legend row.
type LegendItem struct {
	Category string `json:"category" doc:"Category value" example:"PublicUtility"`
	Label    string `json:"label" doc:"Legend label" example:"Public Utility"`
	Color    string `json:"color" doc:"Fill color (CSS)" example:"#ce5eb4"`
	Stroke   string `json:"stroke" doc:"Stroke color (CSS)" example:"#232323"`
}

// Overlay is an assembled, styled layer.
type Overlay struct {
	ID       string
	Name     string
	Visible  bool
	Styled   bool
	Popups   bool
	Features int
	Data     *geojson.FeatureCollection
}

// Map is the result of a successful assembly.
type Map struct {
	Overlays []Overlay
	LoadedAt time.Time
}

// Overlay returns the overlay with the given ID.
func (m *Map) Overlay(id string) (Overlay, bool) {
	if m == nil {
		return Overlay{}, false
	}
	for _, o := range m.Overlays {
		if o.ID == id {
			return o, true
		}
	}
	return Overlay{}, false
}

// SourceFile represents a GeoJSON file in the data directory.
type SourceFile struct {
	Name     string `json:"name" doc:"File path relative to the data directory" example:"data/proposed_landUse.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
	Used     bool   `json:"used" doc:"Whether a configured layer reads this file"`
}
