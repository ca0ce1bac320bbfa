// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/joeblew999/plat-landuse/internal/db"
	"github.com/joeblew999/plat-landuse/internal/service"
	"github.com/joeblew999/plat-landuse/internal/style"
)

// Version is the API version reported by /health and /api/v1/info.
const Version = "1.0.0"

// GeoJSONContentType is the media type of layer documents.
const GeoJSONContentType = "application/geo+json"

// Services holds the service dependencies for API handlers.
type Services struct {
	Map     *service.MapService
	Sources *service.SourceService
	Store   *db.Store
}

// RegisterRoutes registers every REST route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"proposed_land_use"`
}

type StyleInput struct {
	IDInput
	Category string `query:"category" doc:"Category value to resolve; empty resolves to Default" example:"Residential"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// OverlayBody describes one assembled overlay.
type OverlayBody struct {
	ID       string `json:"id" doc:"Layer ID" example:"proposed_land_use"`
	Name     string `json:"name" doc:"Display name" example:"Proposed Land Use"`
	Visible  bool   `json:"visible" doc:"Shown on load"`
	Styled   bool   `json:"styled" doc:"Features carry a resolved _style property"`
	Popups   bool   `json:"popups" doc:"Features carry a _popup property"`
	Features int    `json:"features" doc:"Number of features" example:"42"`
	Href     string `json:"href" doc:"Styled GeoJSON document" example:"/api/v1/layers/proposed_land_use"`
}

type LegendBody struct {
	Title string               `json:"title" doc:"Legend title" example:"Land Use Categories"`
	Items []service.LegendItem `json:"items" doc:"Legend rows in display order"`
}

// MapBody is everything the viewer needs to build the map.
type MapBody struct {
	Title       string            `json:"title" doc:"Map title"`
	Description string            `json:"description" doc:"Map description"`
	Center      [2]float64        `json:"center" doc:"Initial center as [lat, lon]"`
	Zoom        int               `json:"zoom" doc:"Initial zoom level" example:"18"`
	BaseMaps    []service.BaseMap `json:"baseMaps" doc:"Switchable base tile layers"`
	Overlays    []OverlayBody     `json:"overlays" doc:"Published overlays in draw order"`
	Legend      LegendBody        `json:"legend" doc:"Legend for the primary category table"`
	Loaded      bool              `json:"loaded" doc:"Whether a map has been published"`
	LoadedAt    *time.Time        `json:"loadedAt,omitempty" doc:"When the published map was assembled"`
	Error       string            `json:"error,omitempty" doc:"Error of the most recent failed load"`
}

type MapInput struct {
	IfNoneMatch string `header:"If-None-Match" doc:"ETag of a previously fetched map"`
}

type MapOutput struct {
	ETag string `header:"ETag"`
	Body MapBody
}

type LayersOutput struct {
	Body []OverlayBody
}

// LayerOutput is a raw styled GeoJSON FeatureCollection.
type LayerOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type StyleBody struct {
	Layer    string              `json:"layer" doc:"Layer ID" example:"proposed_land_use"`
	Category string              `json:"category" doc:"Requested category" example:"Residential"`
	Resolved string              `json:"resolved" doc:"Table entry used (Default for unrecognized values)" example:"Residential"`
	Style    style.CategoryStyle `json:"style" doc:"Resolved style"`
}

type SummaryBody struct {
	Layer      string               `json:"layer" doc:"Layer ID" example:"proposed_land_use"`
	Categories []db.CategorySummary `json:"categories" doc:"Per-category feature counts and areas"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc  *Services
	docs *lru.Cache[string, []byte]
}

// layerCacheSize bounds the encoded layer documents kept across reloads.
const layerCacheSize = 32

func NewAPIHandler(svc *Services) *APIHandler {
	docs, _ := lru.New[string, []byte](layerCacheSize)
	return &APIHandler{svc: svc, docs: docs}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterMap registers the viewer configuration and reload routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map", h.GetMap, huma.OperationTags("map"))
	huma.Post(api, "/api/v1/map/reload", h.ReloadMap, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/legend", h.GetLegend, huma.OperationTags("map"))
}

// RegisterLayers registers overlay routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Register(api, huma.Operation{
		OperationID: "get-layer",
		Method:      "GET",
		Path:        "/api/v1/layers/{id}",
		Summary:     "Get layer",
		Description: "Styled GeoJSON FeatureCollection of a published overlay.",
		Tags:        []string{"layers"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Styled FeatureCollection",
				Content: map[string]*huma.MediaType{
					GeoJSONContentType: {},
				},
			},
		},
	}, h.GetLayer)
	huma.Get(api, "/api/v1/layers/{id}/style", h.GetLayerStyle, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}/summary", h.GetLayerSummary, huma.OperationTags("layers"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetMap(ctx context.Context, input *MapInput) (*MapOutput, error) {
	if h.svc == nil || h.svc.Map == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	out, err := newMapOutput(h.svc.Map)
	if err != nil {
		return nil, err
	}
	if input.IfNoneMatch != "" && input.IfNoneMatch == out.ETag {
		return nil, huma.Status304NotModified()
	}
	return out, nil
}

func (h *APIHandler) ReloadMap(ctx context.Context, input *struct{}) (*MapOutput, error) {
	if h.svc == nil || h.svc.Map == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	if _, err := h.svc.Map.Load(ctx); err != nil {
		return nil, huma.Error503ServiceUnavailable("map data could not be loaded", err)
	}
	return newMapOutput(h.svc.Map)
}

func newMapOutput(ms *service.MapService) (*MapOutput, error) {
	body := NewMapBody(ms)
	sum, err := hashstructure.Hash(body, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, huma.Error500InternalServerError("hashing map", err)
	}
	return &MapOutput{ETag: fmt.Sprintf(`"%x"`, sum), Body: body}, nil
}

func (h *APIHandler) GetLegend(ctx context.Context, input *struct{}) (*struct{ Body LegendBody }, error) {
	if h.svc == nil || h.svc.Map == nil {
		return &struct{ Body LegendBody }{Body: LegendBody{Items: []service.LegendItem{}}}, nil
	}
	return &struct{ Body LegendBody }{Body: newLegendBody(h.svc.Map.Layers())}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	if h.svc == nil || h.svc.Map == nil {
		return &LayersOutput{Body: []OverlayBody{}}, nil
	}
	return &LayersOutput{Body: overlayBodies(h.svc.Map.Current())}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	if h.svc == nil || h.svc.Map == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	if _, ok := h.svc.Map.Layers().Get(input.ID); !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	m := h.svc.Map.Current()
	o, ok := m.Overlay(input.ID)
	if !ok {
		return nil, huma.Error503ServiceUnavailable("map data not loaded")
	}

	// Overlays are immutable once published, so a document is keyed by
	// the load it belongs to.
	key := fmt.Sprintf("%s@%d", o.ID, m.LoadedAt.UnixNano())
	data, ok := h.docs.Get(key)
	if !ok {
		var err error
		if data, err = json.Marshal(o.Data); err != nil {
			return nil, huma.Error500InternalServerError("encoding layer", err)
		}
		h.docs.Add(key, data)
	}
	return &LayerOutput{ContentType: GeoJSONContentType, Body: data}, nil
}

func (h *APIHandler) GetLayerStyle(ctx context.Context, input *StyleInput) (*struct{ Body StyleBody }, error) {
	if h.svc == nil || h.svc.Map == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	layer, ok := h.svc.Map.Layers().Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	if layer.Resolver == nil {
		return nil, huma.Error404NotFound("layer has no category table")
	}

	props := map[string]any{}
	if input.Category != "" && layer.Resolver.PropertyKey != "" {
		props[layer.Resolver.PropertyKey] = input.Category
	}
	resolved, _ := layer.Resolver.Category(props)
	if !layer.Resolver.Table.Has(resolved) {
		resolved = style.DefaultCategory
	}
	return &struct{ Body StyleBody }{Body: StyleBody{
		Layer:    input.ID,
		Category: input.Category,
		Resolved: resolved,
		Style:    layer.Resolver.Resolve(props),
	}}, nil
}

func (h *APIHandler) GetLayerSummary(ctx context.Context, input *IDInput) (*struct{ Body SummaryBody }, error) {
	if h.svc == nil || h.svc.Map == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	if _, ok := h.svc.Map.Layers().Get(input.ID); !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	if h.svc.Store == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	cats, err := h.svc.Store.Summary(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("summarizing layer", err)
	}
	return &struct{ Body SummaryBody }{Body: SummaryBody{Layer: input.ID, Categories: cats}}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc == nil || h.svc.Sources == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Sources.List()
	if err != nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

// NewMapBody snapshots the published map and its configuration.
func NewMapBody(ms *service.MapService) MapBody {
	cfg := ms.Layers().Config()
	m := ms.Current()

	body := MapBody{
		Title:       cfg.Title,
		Description: cfg.Description,
		Center:      cfg.Center,
		Zoom:        cfg.Zoom,
		BaseMaps:    cfg.BaseMaps,
		Overlays:    overlayBodies(m),
		Legend:      newLegendBody(ms.Layers()),
		Loaded:      !m.LoadedAt.IsZero(),
	}
	if body.BaseMaps == nil {
		body.BaseMaps = []service.BaseMap{}
	}
	if body.Loaded {
		at := m.LoadedAt
		body.LoadedAt = &at
	}
	if err := ms.LastError(); err != nil {
		body.Error = err.Error()
	}
	return body
}

func newLegendBody(layers *service.LayerService) LegendBody {
	return LegendBody{
		Title: layers.Config().Legend.Title,
		Items: layers.Legend(),
	}
}

func overlayBodies(m *service.Map) []OverlayBody {
	out := make([]OverlayBody, 0, len(m.Overlays))
	for _, o := range m.Overlays {
		out = append(out, OverlayBody{
			ID:       o.ID,
			Name:     o.Name,
			Visible:  o.Visible,
			Styled:   o.Styled,
			Popups:   o.Popups,
			Features: o.Features,
			Href:     "/api/v1/layers/" + o.ID,
		})
	}
	return out
}
