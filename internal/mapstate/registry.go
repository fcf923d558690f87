package mapstate

import (
	"sync"
	"time"

	"drrm-api/internal/geo"
	"drrm-api/internal/logger"
	"drrm-api/internal/metrics"
	"drrm-api/internal/nearest"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Kind is where a layer came from.
type Kind string

const (
	KindKML Kind = "kml"
	KindCSV Kind = "csv"
)

// Palette is cycled by registration order.
var Palette = []string{"#3b82f6", "#ef4444", "#10b981", "#f59e0b", "#8b5cf6", "#ec4899", "#14b8a6", "#f97316"}

// Layer is one overlay owned by the registry.
type Layer struct {
	ID         string
	Name       string
	Features   []geo.Feature
	Visible    bool
	Color      string
	SourceFile string
	Kind       Kind

	handle Handle
	index  *nearest.Index
}

// Geometry is the layer's geometry collection in feature order.
func (l *Layer) Geometry() orb.Collection {
	c := make(orb.Collection, 0, len(l.Features))
	for _, f := range l.Features {
		c = append(c, f.Geometry)
	}
	return c
}

// LayerInfo is a read-only snapshot of a layer.
type LayerInfo struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Visible    bool        `json:"visible"`
	Color      string      `json:"color"`
	SourceFile string      `json:"sourceFile"`
	Kind       Kind        `json:"kind"`
	Features   int         `json:"features"`
	Bounds     *[4]float64 `json:"bounds,omitempty"` // minLon, minLat, maxLon, maxLat
}

func (l *Layer) info() LayerInfo {
	li := LayerInfo{
		ID:         l.ID,
		Name:       l.Name,
		Visible:    l.Visible,
		Color:      l.Color,
		SourceFile: l.SourceFile,
		Kind:       l.Kind,
		Features:   len(l.Features),
	}
	if b := l.Geometry().Bound(); !b.IsEmpty() && finite(b.Min[0], b.Min[1], b.Max[0], b.Max[1]) {
		li.Bounds = &[4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	}
	return li
}

// Registry is the ordered list of map layers.
// The registry lock is always taken before any Host call.
type Registry struct {
	mu      sync.RWMutex
	host    Host
	pub     Publisher
	palette []string
	layers  []*Layer
	seq     int
}

// NewRegistry binds a registry to its map host. pub may be nil.
func NewRegistry(host Host, pub Publisher) *Registry {
	return &Registry{host: host, pub: pub, palette: Palette}
}

// publish must run under r.mu so subscribers see mutations in order.
func (r *Registry) publish(e Event) {
	if r.pub == nil {
		return
	}
	e.At = time.Now()
	r.pub.Publish(e)
}

func (r *Registry) indexOf(id string) int {
	for i, l := range r.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Add appends l, assigns the next palette color and attaches it when
// visible. An empty or duplicate ID is replaced with a fresh uuid.
func (r *Registry) Add(l Layer) LayerInfo {
	r.mu.Lock()
	if l.ID == "" || r.indexOf(l.ID) >= 0 {
		l.ID = uuid.NewString()
	}
	l.Color = r.palette[r.seq%len(r.palette)]
	r.seq++
	l.handle = 0
	l.index = buildIndex(l.Features)
	if l.Visible {
		l.handle = r.host.Attach(l.ID)
	}
	nl := &l
	r.layers = append(r.layers, nl)
	li := nl.info()
	n := len(r.layers)
	r.publish(Event{Type: EventLayerAdded, Layer: &li, LayerID: li.ID})
	r.mu.Unlock()

	metrics.MapLayers.Set(float64(n))
	logger.L().Info("layer_added", "id", li.ID, "name", li.Name, "kind", li.Kind, "color", li.Color, "features", li.Features)
	return li
}

// Toggle flips visibility and attaches or detaches to match. The bool is
// false when id is unknown.
func (r *Registry) Toggle(id string) (LayerInfo, bool) {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return LayerInfo{}, false
	}
	l := r.layers[i]
	if l.Visible {
		r.host.Detach(l.handle)
		l.handle = 0
	} else {
		l.handle = r.host.Attach(l.ID)
	}
	l.Visible = !l.Visible
	li := l.info()
	r.publish(Event{Type: EventLayerToggled, Layer: &li, LayerID: id})
	r.mu.Unlock()

	logger.L().Debug("layer_toggled", "id", id, "visible", li.Visible)
	return li, true
}

// Remove detaches and deletes the layer. Unknown ids are a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	l := r.layers[i]
	if l.handle != 0 {
		r.host.Detach(l.handle)
		l.handle = 0
	}
	r.layers = append(r.layers[:i], r.layers[i+1:]...)
	n := len(r.layers)
	r.publish(Event{Type: EventLayerRemoved, LayerID: id})
	r.mu.Unlock()

	metrics.MapLayers.Set(float64(n))
	logger.L().Info("layer_removed", "id", id)
	return true
}

// Clear removes every layer and restarts the palette. It returns how many
// layers were removed.
func (r *Registry) Clear() int {
	r.mu.Lock()
	n := len(r.layers)
	for _, l := range r.layers {
		if l.handle != 0 {
			r.host.Detach(l.handle)
		}
	}
	r.layers = nil
	r.seq = 0
	r.publish(Event{Type: EventLayersCleared, Count: n})
	r.mu.Unlock()

	metrics.MapLayers.Set(0)
	logger.L().Info("layers_cleared", "count", n)
	return n
}

// ZoomTo fits the viewport to the layer. fitted is false when the layer
// has no geometry; found is false when id is unknown.
func (r *Registry) ZoomTo(id string) (fitted bool, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return false, false
	}
	return r.host.FitBounds(r.layers[i].Geometry().Bound()), true
}

func (r *Registry) Get(id string) (LayerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return LayerInfo{}, false
	}
	return r.layers[i].info(), true
}

// List returns snapshots in insertion order.
func (r *Registry) List() []LayerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LayerInfo, 0, len(r.layers))
	for _, l := range r.layers {
		out = append(out, l.info())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.layers)
}

// FeatureCollection exports one layer as GeoJSON; each feature carries the
// layer color as "stroke".
func (r *Registry) FeatureCollection(id string) (*geojson.FeatureCollection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil, false
	}
	l := r.layers[i]
	doc := geo.Document{Name: l.Name, Features: l.Features}
	fc := doc.FeatureCollection()
	for _, f := range fc.Features {
		f.Properties["stroke"] = l.Color
	}
	return fc, true
}

// NearestHit is the feature of a layer closest to a query point.
type NearestHit struct {
	LayerID     string            `json:"layerId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	Position    LatLng            `json:"position"`
	DistanceKm  float64           `json:"distanceKm"`
}

// Nearest finds the layer feature closest to p. Lines and polygons are
// represented by the center of their bounds. ok is false when the layer is
// unknown or has no features.
func (r *Registry) Nearest(id string, p LatLng) (NearestHit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return NearestHit{}, false
	}
	l := r.layers[i]
	e, km, ok := l.index.Nearest(p.Point())
	if !ok {
		return NearestHit{}, false
	}
	f := l.Features[e.Ref]
	return NearestHit{
		LayerID:     l.ID,
		Name:        f.Name,
		Description: f.Description,
		Properties:  f.Properties,
		Position:    LatLng{Lat: e.Point.Lat(), Lon: e.Point.Lon()},
		DistanceKm:  km,
	}, true
}

func buildIndex(fs []geo.Feature) *nearest.Index {
	es := make([]nearest.Entry, 0, len(fs))
	for i, f := range fs {
		if f.Geometry == nil {
			continue
		}
		pt, isPoint := f.Geometry.(orb.Point)
		if !isPoint {
			b := f.Geometry.Bound()
			if b.IsEmpty() {
				continue
			}
			pt = b.Center()
		}
		es = append(es, nearest.Entry{Point: pt, Ref: i})
	}
	return nearest.Build(es)
}
