// Package style maps categorical feature properties to visual styles.
package style

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// DefaultCategory is the table entry used for missing or unknown categories.
const DefaultCategory = "Default"

// ErrNoDefault is returned when a table is built without a Default entry.
var ErrNoDefault = errors.New("style table has no Default entry")

// CategoryStyle is the path style applied to a feature.
// Field names follow Leaflet's path options so the value can be handed
// to the map library unchanged.
type CategoryStyle struct {
	Color       string  `json:"color" doc:"Stroke color (CSS)" example:"#232323"`
	FillColor   string  `json:"fillColor,omitempty" doc:"Fill color (CSS)" example:"#e8863b"`
	FillOpacity float64 `json:"fillOpacity" minimum:"0" maximum:"1" doc:"Fill opacity (0-1)" example:"0.5"`
}

// CategoryConfig is one category entry of a TableConfig.
type CategoryConfig struct {
	Name        string   `yaml:"name" json:"name"`
	Label       string   `yaml:"label,omitempty" json:"label,omitempty"`
	FillColor   string   `yaml:"fillColor" json:"fillColor"`
	FillOpacity *float64 `yaml:"fillOpacity,omitempty" json:"fillOpacity,omitempty"`
}

// TableConfig describes a category table as it appears in the map config.
// Stroke and FillOpacity apply to every category unless overridden.
type TableConfig struct {
	Stroke      string           `yaml:"stroke" json:"stroke"`
	FillOpacity float64          `yaml:"fillOpacity" json:"fillOpacity"`
	Default     *CategoryConfig  `yaml:"default" json:"default"`
	Categories  []CategoryConfig `yaml:"categories" json:"categories"`
}

// Entry is a category with its display label and style.
type Entry struct {
	Category string
	Label    string
	Style    CategoryStyle
}

// Table is an immutable category lookup table. Lookups never fail: anything
// not in the table resolves to the Default entry.
type Table struct {
	entries  map[string]CategoryStyle
	order    []Entry
	fallback CategoryStyle
}

// NewTable builds a table from its config.
func NewTable(cfg TableConfig) (*Table, error) {
	if cfg.Default == nil {
		return nil, ErrNoDefault
	}

	t := &Table{
		entries:  make(map[string]CategoryStyle, len(cfg.Categories)+1),
		fallback: cfg.styleFor(*cfg.Default),
	}
	t.entries[DefaultCategory] = t.fallback

	for _, c := range cfg.Categories {
		if c.Name == "" {
			return nil, errors.New("style table category without a name")
		}
		if c.Name == DefaultCategory {
			return nil, fmt.Errorf("category %q is reserved", DefaultCategory)
		}
		if _, dup := t.entries[c.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		s := cfg.styleFor(c)
		t.entries[c.Name] = s

		label := c.Label
		if label == "" {
			label = c.Name
		}
		t.order = append(t.order, Entry{Category: c.Name, Label: label, Style: s})
	}
	return t, nil
}

func (cfg TableConfig) styleFor(c CategoryConfig) CategoryStyle {
	opacity := cfg.FillOpacity
	if c.FillOpacity != nil {
		opacity = *c.FillOpacity
	}
	return CategoryStyle{
		Color:       cfg.Stroke,
		FillColor:   c.FillColor,
		FillOpacity: opacity,
	}
}

// Lookup returns the style for category, or the Default style.
func (t *Table) Lookup(category string) CategoryStyle {
	if s, ok := t.entries[category]; ok {
		return s
	}
	return t.fallback
}

// Has reports whether category is a named entry (Default excluded).
func (t *Table) Has(category string) bool {
	if category == DefaultCategory {
		return false
	}
	_, ok := t.entries[category]
	return ok
}

// Default returns the fallback style.
func (t *Table) Default() CategoryStyle {
	return t.fallback
}

// Entries returns the named categories in configured order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.order))
	copy(out, t.order)
	return out
}

// Resolver resolves feature styles for one layer. PropertyKey names the
// feature property carrying the category; the key differs per layer
// (LAND_USE for proposed land use, land_use for existing land use).
// An empty PropertyKey resolves every feature to Default.
type Resolver struct {
	PropertyKey string
	Table       *Table
}

// NewResolver creates a resolver reading key from feature properties.
func NewResolver(key string, table *Table) *Resolver {
	return &Resolver{PropertyKey: key, Table: table}
}

// Category returns the feature's category value and whether it is a
// string present on the feature.
func (r *Resolver) Category(props geojson.Properties) (string, bool) {
	if r.PropertyKey == "" || props == nil {
		return "", false
	}
	v, ok := props[r.PropertyKey].(string)
	return v, ok
}

// Resolve returns the style for a feature's properties.
func (r *Resolver) Resolve(props geojson.Properties) CategoryStyle {
	category, ok := r.Category(props)
	if !ok {
		return r.Table.Default()
	}
	return r.Table.Lookup(category)
}

// ResolveFeature is Resolve for a whole feature.
func (r *Resolver) ResolveFeature(f *geojson.Feature) CategoryStyle {
	if f == nil {
		return r.Table.Default()
	}
	return r.Resolve(f.Properties)
}
