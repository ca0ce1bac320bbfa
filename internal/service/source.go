package service

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// SourceService lists the GeoJSON documents available in the data directory.
type SourceService struct {
	dataDir string
	layers  *LayerService
}

// NewSourceService creates a new source service.
func NewSourceService(dataDir string, layers *LayerService) *SourceService {
	return &SourceService{dataDir: dataDir, layers: layers}
}

// List walks the data directory and returns every GeoJSON file, marking
// the ones referenced by a configured layer.
func (s *SourceService) List() ([]SourceFile, error) {
	used := make(map[string]bool)
	if s.layers != nil {
		for _, l := range s.layers.List() {
			if clean, err := cleanName(l.Config.File); err == nil {
				used[clean] = true
			}
		}
	}

	files := []SourceFile{}
	err := filepath.WalkDir(s.dataDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == s.dataDir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if p != s.dataDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".geojson" && ext != ".json" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(s.dataDir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		files = append(files, SourceFile{
			Name:     rel,
			Size:     humanize.Bytes(uint64(info.Size())),
			FileType: "GeoJSON",
			Used:     used[rel],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// DataDir returns the path to the data directory.
func (s *SourceService) DataDir() string {
	return s.dataDir
}
