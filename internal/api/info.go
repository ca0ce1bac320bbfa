package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-landuse/internal/service"
)

type InfoHandler struct {
	dataDir string
	dbOK    bool
	maps    *service.MapService
}

func NewInfoHandler(dataDir string, dbOK bool, maps *service.MapService) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, maps: maps}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory or base URL the layers are read from"`
	DB       bool     `json:"db" doc:"Whether database is available"`
	Loaded   bool     `json:"loaded" doc:"Whether a map has been published"`
	Overlays int      `json:"overlays" doc:"Number of published overlays"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-landuse",
		Version:  Version,
		DataDir:  h.dataDir,
		DB:       h.dbOK,
		Features: []string{"geojson", "styles", "popups", "duckdb", "sse"},
	}
	if h.maps != nil {
		m := h.maps.Current()
		body.Loaded = !m.LoadedAt.IsZero()
		body.Overlays = len(m.Overlays)
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
