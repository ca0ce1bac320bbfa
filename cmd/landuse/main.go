package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-landuse/internal/server"
	"github.com/joeblew999/plat-landuse/internal/service"
)

// Options defines all CLI flags and env vars for the land use server.
// Flags: --host, --port, --data-dir, --data-url, --web-dir, --config, --log-level
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_DATA_URL, ...
type Options struct {
	Host     string `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir  string `doc:"Directory the layer GeoJSON files are read from" default:"."`
	DataURL  string `doc:"Base URL to fetch layer files from instead of the data directory"`
	WebDir   string `doc:"Path to a web/ directory overriding the embedded templates and static files"`
	Config   string `doc:"Map definition YAML (default: embedded Lake Amu map)"`
	LogLevel string `doc:"Log level: debug, info, warn, error" default:"info"`
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newServer(opts *Options, logger *slog.Logger) (*server.Server, error) {
	return server.New(server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		DataDir:    opts.DataDir,
		DataURL:    opts.DataURL,
		WebDir:     opts.WebDir,
		ConfigPath: opts.Config,
		Logger:     logger,
		AccessLog:  os.Stderr,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := newLogger(opts.LogLevel)
		slog.SetDefault(logger)

		srv, err := newServer(opts, logger)
		if err != nil {
			logger.Error("server setup failed", "err", err)
			os.Exit(1)
		}

		hooks.OnStart(func() {
			defer srv.Close()

			// A failed load is logged by the assembler; the viewer starts with an empty map.
			srv.Load(context.Background())

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-landuse map server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			if opts.DataURL != "" {
				fmt.Printf("  Data:    %s\n", opts.DataURL)
			} else {
				fmt.Printf("  Data:    %s\n", opts.DataDir)
			}
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				logger.Error("server error", "err", err)
				os.Exit(1)
			}
		})
	})

	cli.Root().Use = "landuse"
	cli.Root().Short = "Land use development plan map server"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts, newLogger(opts.LogLevel))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// check subcommand: assemble the map once and report the overlays
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Load every layer once and report the result",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			if err := check(cmd.Context(), opts, newLogger(opts.LogLevel)); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	cli.Root().AddCommand(checkCmd)

	cli.Run()
}

func check(ctx context.Context, opts *Options, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := service.LoadConfig(opts.Config)
	if err != nil {
		return err
	}
	layers, err := service.NewLayerService(cfg)
	if err != nil {
		return err
	}

	var fetcher service.Fetcher = service.NewDirFetcher(opts.DataDir)
	if opts.DataURL != "" {
		fetcher = service.NewHTTPFetcher(opts.DataURL)
	}
	m, err := service.NewAssembler(layers, fetcher, logger).Assemble(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n\n", cfg.Title)
	for _, o := range m.Overlays {
		flags := []string{}
		if o.Styled {
			flags = append(flags, "styled")
		}
		if o.Popups {
			flags = append(flags, "popups")
		}
		if o.Visible {
			flags = append(flags, "visible")
		}
		fmt.Printf("  %-26s %8s features  %s\n", o.ID, humanize.Comma(int64(o.Features)), strings.Join(flags, ","))
	}
	return nil
}
