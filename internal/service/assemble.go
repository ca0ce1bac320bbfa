package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// ErrDataLoad is matched by every LoadError.
var ErrDataLoad = errors.New("data load failure")

// LoadError reports the layer whose document could not be fetched or decoded.
type LoadError struct {
	Layer string
	Path  string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading layer %q from %s: %v", e.Layer, e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrDataLoad, e.Err}
}

// Assembler loads every configured layer and styles it.
type Assembler struct {
	layers  *LayerService
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewAssembler creates an assembler. A nil logger uses slog.Default().
func NewAssembler(layers *LayerService, fetcher Fetcher, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{layers: layers, fetcher: fetcher, logger: logger, now: time.Now}
}

// Assemble fetches all layer documents concurrently and waits for every
// fetch to finish. If any fetch or decode fails the whole assembly is
// abandoned: the failure is logged once and a map with no overlays is
// returned together with the error. There is no retry.
func (a *Assembler) Assemble(ctx context.Context) (*Map, error) {
	layers := a.layers.List()
	docs := make([]*geojson.FeatureCollection, len(layers))

	var g errgroup.Group
	for i, l := range layers {
		g.Go(func() error {
			data, err := a.fetcher.Fetch(ctx, l.Config.File)
			if err != nil {
				return &LoadError{Layer: l.Config.ID, Path: l.Config.File, Err: err}
			}
			fc, err := DecodeFeatureCollection(data)
			if err != nil {
				return &LoadError{Layer: l.Config.ID, Path: l.Config.File, Err: err}
			}
			docs[i] = fc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Error("map assembly failed", "err", err)
		return &Map{}, err
	}

	m := &Map{
		Overlays: make([]Overlay, 0, len(layers)),
		LoadedAt: a.now(),
	}
	for i, l := range layers {
		m.Overlays = append(m.Overlays, Overlay{
			ID:       l.Config.ID,
			Name:     l.Config.Name,
			Visible:  l.Config.Visible,
			Styled:   l.Resolver != nil,
			Popups:   l.Popup != nil,
			Features: len(docs[i].Features),
			Data:     l.Apply(docs[i]),
		})
	}
	a.logger.Info("map assembled", "overlays", len(m.Overlays))
	return m, nil
}
