package service

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-landuse/internal/popup"
	"github.com/joeblew999/plat-landuse/internal/style"
)

// Feature properties added to styled copies for the viewer.
const (
	StyleProperty = "_style"
	PopupProperty = "_popup"
)

// Layer is a configured overlay with its resolver and popup formatter.
// Resolver is nil for layers drawn with the map library's default style;
// Popup is nil for layers without popups.
type Layer struct {
	Config   LayerConfig
	Resolver *style.Resolver
	Popup    *popup.Formatter
}

// LayerService compiles a MapConfig into immutable layers and style tables.
type LayerService struct {
	config *MapConfig
	tables map[string]*style.Table
	layers []Layer
}

// NewLayerService builds style tables and resolvers for cfg.
func NewLayerService(cfg *MapConfig) (*LayerService, error) {
	s := &LayerService{
		config: cfg,
		tables: make(map[string]*style.Table, len(cfg.Tables)),
	}

	for name, tc := range cfg.Tables {
		t, err := style.NewTable(tc)
		if err != nil {
			return nil, fmt.Errorf("style table %q: %w", name, err)
		}
		s.tables[name] = t
	}

	for _, lc := range cfg.Layers {
		layer := Layer{Config: lc}
		if lc.Table != "" {
			layer.Resolver = style.NewResolver(lc.CategoryKey, s.tables[lc.Table])
		}
		if lc.Popup != nil {
			layer.Popup = popup.New(lc.Popup.CategoryKey, lc.Popup.AreaKey)
			if lc.Popup.Label != "" {
				layer.Popup.CategoryLabel = lc.Popup.Label
			}
		}
		s.layers = append(s.layers, layer)
	}
	return s, nil
}

// Config returns the map definition the service was built from.
func (s *LayerService) Config() *MapConfig {
	return s.config
}

// List returns the layers in configured order.
func (s *LayerService) List() []Layer {
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Get returns a layer by ID.
func (s *LayerService) Get(id string) (Layer, bool) {
	for _, l := range s.layers {
		if l.Config.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// Table returns a compiled style table by name.
func (s *LayerService) Table(name string) (*style.Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Legend returns the legend rows for the configured legend table.
func (s *LayerService) Legend() []LegendItem {
	t, ok := s.tables[s.config.Legend.Table]
	if !ok {
		return []LegendItem{}
	}
	entries := t.Entries()
	items := make([]LegendItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, LegendItem{
			Category: e.Category,
			Label:    e.Label,
			Color:    e.Style.FillColor,
			Stroke:   e.Style.Color,
		})
	}
	return items
}

// Apply returns a styled copy of fc. Source features are not modified:
// each output feature shares geometry with its source but owns a cloned
// property map carrying the resolved style and popup HTML.
func (l Layer) Apply(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	out.BBox = fc.BBox
	for _, f := range fc.Features {
		styled := geojson.NewFeature(f.Geometry)
		styled.ID = f.ID
		styled.BBox = f.BBox
		styled.Properties = f.Properties.Clone()
		if styled.Properties == nil {
			styled.Properties = geojson.Properties{}
		}
		if l.Resolver != nil {
			styled.Properties[StyleProperty] = l.Resolver.ResolveFeature(f)
		}
		if l.Popup != nil {
			styled.Properties[PopupProperty] = l.Popup.Format(f.Properties)
		}
		out.Append(styled)
	}
	return out
}

// FeatureRecord is the tabular view of one feature used for summaries.
// Category is the raw property value; Class is the table entry it resolved
// to (style.DefaultCategory for unknown values).
type FeatureRecord struct {
	Layer       string
	Category    string
	HasCategory bool
	Class       string
	Area        float64
	HasArea     bool
}

// Records flattens every overlay of m into feature records.
func (s *LayerService) Records(m *Map) []FeatureRecord {
	var out []FeatureRecord
	for _, o := range m.Overlays {
		l, ok := s.Get(o.ID)
		if !ok || o.Data == nil {
			continue
		}
		for _, f := range o.Data.Features {
			rec := FeatureRecord{Layer: o.ID}
			if l.Resolver != nil {
				rec.Category, rec.HasCategory = l.Resolver.Category(f.Properties)
				rec.Class = style.DefaultCategory
				if rec.HasCategory && l.Resolver.Table.Has(rec.Category) {
					rec.Class = rec.Category
				}
			}
			if l.Popup != nil && l.Popup.AreaKey != "" {
				if v, ok := f.Properties[l.Popup.AreaKey].(float64); ok {
					rec.Area, rec.HasArea = v, true
				}
			}
			out = append(out, rec)
		}
	}
	return out
}
