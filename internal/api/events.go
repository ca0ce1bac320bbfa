package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dustin/go-humanize"

	"github.com/joeblew999/plat-landuse/internal/humastar"
	"github.com/joeblew999/plat-landuse/internal/service"
	"github.com/joeblew999/plat-landuse/internal/templates"
)

// StatusSelector is the viewer element the status fragment is patched into.
const StatusSelector = "#map-status"

// Status is the data of the "status" fragment.
type Status struct {
	Loaded   bool
	Overlays int
	LoadedAt string
	Error    string
}

// NewStatus describes the published map of ms.
func NewStatus(ms *service.MapService) Status {
	m := ms.Current()
	st := Status{Overlays: len(m.Overlays)}
	if !m.LoadedAt.IsZero() {
		st.Loaded = true
		st.LoadedAt = humanize.Time(m.LoadedAt)
	}
	if err := ms.LastError(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// EventHandler streams map reloads to the viewer via Datastar SSE.
type EventHandler struct {
	humastar.Handler
	maps *service.MapService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(maps *service.MapService, renderer *templates.Renderer) *EventHandler {
	return &EventHandler{
		Handler: humastar.Handler{Renderer: renderer},
		maps:    maps,
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/events", h.Events,
		huma.OperationTags("map"),
	)
}

// Events patches the status fragment on connect and after every load, and
// dispatches a "map-changed" browser event so the viewer refetches overlays.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE, humaCtx huma.Context) {
		ch := h.maps.Bus().Subscribe()
		defer h.maps.Bus().Unsubscribe(ch)

		if err := sse.Patch(h.Fragment("status", NewStatus(h.maps)), StatusSelector); err != nil {
			return
		}

		done := humaCtx.Context().Done()
		for {
			select {
			case <-done:
				return
			case ev := <-ch:
				sse.Patch(h.Fragment("status", NewStatus(h.maps)), StatusSelector)
				if ev.Err != "" {
					sse.Error(ev.Err)
				}
				sse.DispatchCustomEvent("map-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"overlays": ev.Overlays,
					"loaded":   ev.Action == "loaded",
				})
			}
		}
	}), nil
}
