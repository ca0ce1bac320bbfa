package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

// Fetcher retrieves a GeoJSON document by its configured relative path.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// DirFetcher reads documents from a local directory.
type DirFetcher struct {
	Dir string
}

// NewDirFetcher creates a fetcher rooted at dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{Dir: dir}
}

// Fetch reads name below the fetcher's directory. Names escaping the
// directory are rejected.
func (f *DirFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(f.Dir, filepath.FromSlash(clean)))
}

// HTTPFetcher fetches documents relative to a base URL.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher creates a fetcher for baseURL using http.DefaultClient.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{BaseURL: baseURL, Client: http.DefaultClient}
}

// Fetch issues a GET for name relative to the base URL. Any status other
// than 2xx is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSuffix(f.BaseURL, "/") + "/" + clean)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func cleanName(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid path %q", name)
	}
	return clean, nil
}

// errNotFeatureCollection is returned for JSON documents of another GeoJSON type.
var errNotFeatureCollection = errors.New("not a GeoJSON FeatureCollection")

// DecodeFeatureCollection parses a GeoJSON FeatureCollection. Invalid JSON
// and other GeoJSON object types are rejected.
func DecodeFeatureCollection(data []byte) (*geojson.FeatureCollection, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	if t := gjson.GetBytes(data, "type").String(); t != "FeatureCollection" {
		return nil, fmt.Errorf("%w: type=%q", errNotFeatureCollection, t)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	return fc, nil
}
