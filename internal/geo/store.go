// Package geo maintains the registry of named polygon geometries: builtin
// regions loaded once from a GeoJSON file, plus user-uploaded areas of
// interest stored as individual files. Requests snapshot the registry before
// streaming so uploads and deletes never affect a pass in flight.
package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/compfilter/compfilter/internal/domain"
)

// CustomPrefix marks labels that refer to uploaded geometries.
const CustomPrefix = "custom:"

// Feature property keys tried, in order, when naming a builtin region.
var regionNameProps = []string{
	"provincienaam", "naam", "name", "PROV_NAAM", "provincie", "region", "label",
}

var stemSanitizer = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Entry is one named geometry: a label and its polygons with per-polygon
// bounding boxes used as the candidate index.
type Entry struct {
	Label  string
	Custom bool
	polys  []*geom.Polygon
	bounds []*geom.Bounds
}

// Contains reports whether the point lies in or on any polygon of the entry.
// The bounding boxes prune polygons before the exact test.
func (e *Entry) Contains(x, y float64) bool {
	for i, b := range e.bounds {
		if x < b.Min(0) || x > b.Max(0) || y < b.Min(1) || y > b.Max(1) {
			continue
		}
		if polygonContains(e.polys[i], x, y) {
			return true
		}
	}
	return false
}

func newEntry(label string, custom bool, polys []*geom.Polygon) *Entry {
	e := &Entry{Label: label, Custom: custom, polys: polys}
	for _, p := range polys {
		e.bounds = append(e.bounds, p.Bounds())
	}
	return e
}

// Store is the geometry registry. Reads take a shared lock only long enough
// to snapshot; SaveCustom/DeleteCustom take the exclusive lock, perform an
// atomic on-disk write, and invalidate so the next access reloads.
type Store struct {
	regionsFile string
	customDir   string
	reloads     prometheus.Counter
	logger      *zap.Logger

	mu      sync.RWMutex
	loaded  bool
	entries map[string]*Entry
	builtin []*Entry
}

// NewStore creates a geometry store. reloads may be nil.
func NewStore(regionsFile, customDir string, reloads prometheus.Counter, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		regionsFile: regionsFile,
		customDir:   customDir,
		reloads:     reloads,
		logger:      logger,
	}
}

// Snapshot returns a consistent view of the current label→geometry mapping,
// loading the registry first if it was invalidated.
func (s *Store) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	if s.loaded {
		snap := &Snapshot{entries: s.entries, builtin: s.builtin}
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(); err != nil {
			return nil, err
		}
	}
	return &Snapshot{entries: s.entries, builtin: s.builtin}, nil
}

// Labels returns all known labels: builtin regions sorted, then custom areas
// sorted.
func (s *Store) Labels() ([]string, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Labels(), nil
}

// Invalidate forces a reload of builtin and custom geometries on next access.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.entries = nil
	s.builtin = nil
	s.mu.Unlock()
	s.logger.Info("geometry registry invalidated")
}

// SaveCustom validates and stores an uploaded GeoJSON document under a label
// derived from the file name. The file is written atomically (temp + rename)
// and the registry invalidated.
func (s *Store) SaveCustom(filename string, data []byte) (string, error) {
	stem := sanitizeStem(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if stem == "" {
		return "", fmt.Errorf("%w: empty geometry name", domain.ErrConfiguration)
	}

	polys, err := parseGeoJSON(data)
	if err != nil {
		return "", fmt.Errorf("parse geometry upload: %w", err)
	}
	if len(polys) == 0 {
		return "", fmt.Errorf("%w: upload contains no polygon features", domain.ErrConfiguration)
	}

	if err := os.MkdirAll(s.customDir, 0o755); err != nil {
		return "", fmt.Errorf("create custom geometry dir: %w", err)
	}

	target := filepath.Join(s.customDir, stem+".geojson")
	tmp, err := os.CreateTemp(s.customDir, stem+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("stage geometry upload: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write geometry upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close geometry upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store geometry upload: %w", err)
	}

	s.Invalidate()
	label := CustomPrefix + stem
	s.logger.Info("custom geometry stored",
		zap.String("label", label),
		zap.Int("polygons", len(polys)),
	)
	return label, nil
}

// DeleteCustom removes an uploaded geometry and its file. Builtin regions
// cannot be deleted.
func (s *Store) DeleteCustom(label string) error {
	if !strings.HasPrefix(label, CustomPrefix) {
		return fmt.Errorf("%w: only custom areas can be removed", domain.ErrConfiguration)
	}
	stem := strings.TrimPrefix(label, CustomPrefix)
	if stem == "" || sanitizeStem(stem) != stem {
		return fmt.Errorf("%w: invalid custom area name %q", domain.ErrConfiguration, stem)
	}

	target := filepath.Join(s.customDir, stem+".geojson")
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return fmt.Errorf("%w: custom area %q", domain.ErrNotFound, stem)
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("remove custom geometry: %w", err)
	}

	s.Invalidate()
	s.logger.Info("custom geometry removed", zap.String("label", label))
	return nil
}

// loadLocked reads builtin regions and custom areas. Caller holds the write
// lock.
func (s *Store) loadLocked() error {
	entries := make(map[string]*Entry)
	var builtin []*Entry

	if s.regionsFile != "" {
		regions, err := s.loadRegions()
		if err != nil {
			return err
		}
		for _, e := range regions {
			entries[e.Label] = e
		}
		builtin = regions
	}

	custom, err := s.loadCustom()
	if err != nil {
		return err
	}
	for _, e := range custom {
		entries[e.Label] = e
	}

	s.entries = entries
	s.builtin = builtin
	s.loaded = true
	if s.reloads != nil {
		s.reloads.Inc()
	}
	s.logger.Info("geometry registry loaded",
		zap.Int("regions", len(builtin)),
		zap.Int("custom", len(custom)),
	)
	return nil
}

func (s *Store) loadRegions() ([]*Entry, error) {
	data, err := os.ReadFile(s.regionsFile)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse regions file: %w", err)
	}

	var out []*Entry
	for i, ft := range fc.Features {
		polys := polygonsFromGeom(ft.Geometry)
		if len(polys) == 0 {
			s.logger.Warn("region feature has no polygon geometry", zap.Int("feature", i))
			continue
		}
		name := regionName(ft.Properties, len(out)+1)
		out = append(out, newEntry(name, false, polys))
	}
	return out, nil
}

func (s *Store) loadCustom() ([]*Entry, error) {
	matches, err := filepath.Glob(filepath.Join(s.customDir, "*.geojson"))
	if err != nil {
		return nil, fmt.Errorf("scan custom geometry dir: %w", err)
	}
	sort.Strings(matches)

	var out []*Entry
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable custom geometry", zap.String("path", path), zap.Error(err))
			continue
		}
		polys, err := parseGeoJSON(data)
		if err != nil || len(polys) == 0 {
			s.logger.Warn("skipping invalid custom geometry", zap.String("path", path), zap.Error(err))
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(path), ".geojson")
		out = append(out, newEntry(CustomPrefix+stem, true, polys))
	}
	return out, nil
}

// Snapshot is an immutable view of the registry taken before a pass starts.
type Snapshot struct {
	entries map[string]*Entry
	builtin []*Entry
}

// Lookup resolves one label.
func (sn *Snapshot) Lookup(label string) (*Entry, bool) {
	e, ok := sn.entries[label]
	return e, ok
}

// Labels returns builtin labels sorted, then custom labels sorted.
func (sn *Snapshot) Labels() []string {
	var regions, custom []string
	for label, e := range sn.entries {
		if e.Custom {
			custom = append(custom, label)
		} else {
			regions = append(regions, label)
		}
	}
	sort.Strings(regions)
	sort.Strings(custom)
	return append(regions, custom...)
}

// ResolveRegion returns the builtin region containing the point, if any.
// Used by the analysis region breakdown.
func (sn *Snapshot) ResolveRegion(x, y float64) (string, bool) {
	for _, e := range sn.builtin {
		if e.Contains(x, y) {
			return e.Label, true
		}
	}
	return "", false
}

// parseGeoJSON extracts polygons from a Polygon, MultiPolygon, Feature or
// FeatureCollection document. Coordinates are assumed EPSG:4326 (lon, lat).
func parseGeoJSON(data []byte) ([]*geom.Polygon, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("not a GeoJSON document: %w", err)
	}

	switch probe.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, err
		}
		var out []*geom.Polygon
		for _, ft := range fc.Features {
			out = append(out, polygonsFromGeom(ft.Geometry)...)
		}
		return out, nil
	case "Feature":
		var ft geojson.Feature
		if err := json.Unmarshal(data, &ft); err != nil {
			return nil, err
		}
		return polygonsFromGeom(ft.Geometry), nil
	case "Polygon", "MultiPolygon":
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, err
		}
		return polygonsFromGeom(g), nil
	default:
		return nil, fmt.Errorf("unsupported GeoJSON type %q", probe.Type)
	}
}

func polygonsFromGeom(t geom.T) []*geom.Polygon {
	switch g := t.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{g}
	case *geom.MultiPolygon:
		out := make([]*geom.Polygon, 0, g.NumPolygons())
		for i := 0; i < g.NumPolygons(); i++ {
			out = append(out, g.Polygon(i))
		}
		return out
	default:
		return nil
	}
}

func regionName(props map[string]interface{}, ordinal int) string {
	for _, key := range regionNameProps {
		if v, ok := props[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	// Any non-empty string property beats a synthetic name.
	for _, v := range props {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return fmt.Sprintf("Region %d", ordinal)
}

func sanitizeStem(stem string) string {
	stem = stemSanitizer.ReplaceAllString(stem, "_")
	stem = strings.Trim(stem, "._")
	if len(stem) > 80 {
		stem = stem[:80]
	}
	return stem
}
