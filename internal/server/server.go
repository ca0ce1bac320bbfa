package server

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/gorilla/handlers"

	"github.com/joeblew999/plat-landuse/internal/api"
	"github.com/joeblew999/plat-landuse/internal/db"
	"github.com/joeblew999/plat-landuse/internal/service"
	"github.com/joeblew999/plat-landuse/internal/templates"
	"github.com/joeblew999/plat-landuse/web"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       string
	DataDir    string // Directory the layer files are read from
	DataURL    string // Base URL the layer files are fetched from; overrides DataDir
	WebDir     string // Optional on-disk web/ directory; templates reload per request
	ConfigPath string // Map definition YAML; empty uses the embedded default
	Logger     *slog.Logger
	AccessLog  io.Writer // HTTP access log destination; nil disables it
}

// Server is the land use map HTTP server.
type Server struct {
	config   Config
	logger   *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	services *api.Services
	renderer *templates.Renderer
	webFS    fs.FS
}

// New creates a new land use map server. The map is empty until Load runs.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mapCfg, err := service.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	layers, err := service.NewLayerService(mapCfg)
	if err != nil {
		return nil, err
	}

	var fetcher service.Fetcher = service.NewDirFetcher(cfg.DataDir)
	if cfg.DataURL != "" {
		fetcher = service.NewHTTPFetcher(cfg.DataURL)
	}
	maps := service.NewMapService(layers, service.NewAssembler(layers, fetcher, logger), nil)

	services := &api.Services{
		Map:     maps,
		Sources: service.NewSourceService(cfg.DataDir, layers),
	}

	// Initialize DuckDB connection
	conn, err := db.Get(db.Config{})
	if err == nil {
		services.Store, err = db.NewStore(conn, layers)
	}
	if err == nil {
		maps.SetIndexer(services.Store)
	} else {
		logger.Warn("duckdb unavailable, summaries disabled", "err", err)
	}

	var webFS fs.FS = web.FS
	if cfg.WebDir != "" {
		webFS = os.DirFS(cfg.WebDir)
	}
	renderer, err := templates.New(webFS)
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-landuse API", api.Version)
	humaConfig.Info.Description = "Land use map API: styled GeoJSON overlays, legend, category summaries and reload events."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      mux,
		humaAPI:  humago.New(mux, humaConfig),
		services: services,
		renderer: renderer,
		webFS:    webFS,
	}
	s.routes()

	s.handler = mux
	if cfg.AccessLog != nil {
		s.handler = handlers.CombinedLoggingHandler(cfg.AccessLog, mux)
	}
	return s, nil
}

// Load assembles the map from the configured data source.
func (s *Server) Load(ctx context.Context) error {
	_, err := s.services.Map.Load(ctx)
	return err
}

// Map returns the map service.
func (s *Server) Map() *service.MapService {
	return s.services.Map
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)

	dataSource := s.config.DataDir
	if s.config.DataURL != "" {
		dataSource = s.config.DataURL
	}
	api.NewInfoHandler(dataSource, s.services.Store != nil, s.services.Map).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.services.Store).RegisterRoutes(s.humaAPI)
	api.NewEventHandler(s.services.Map, s.renderer).RegisterRoutes(s.humaAPI)

	// Static files
	static, err := fs.Sub(s.webFS, "static")
	if err == nil {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

// ViewerPage is the data of viewer.html.
type ViewerPage struct {
	Title       string
	Description string
	Legend      api.LegendBody
	Layers      []service.LayerConfig
	Status      api.Status
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.handleViewer(w, r)
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if s.config.WebDir != "" {
		if err := s.renderer.Reload(); err != nil {
			s.logger.Error("reloading templates", "err", err)
			http.Error(w, "template error", http.StatusInternalServerError)
			return
		}
	}

	body := api.NewMapBody(s.services.Map)
	page := ViewerPage{
		Title:       body.Title,
		Description: body.Description,
		Legend:      body.Legend,
		Layers:      s.services.Map.Layers().Config().Layers,
		Status:      api.NewStatus(s.services.Map),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Execute(w, "viewer.html", page); err != nil {
		s.logger.Error("rendering viewer", "err", err)
	}
}
