// Package mapstate holds the interactive map's server-side state: one map
// host with its viewport, the ordered layer registry, and the upload
// pipeline that feeds it.
package mapstate

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	tileSize       = 256.0
	maxLatMercator = 85.0511287798
)

// LatLng is a WGS84 position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the position as an orb point (lon, lat).
func (ll LatLng) Point() orb.Point { return orb.Point{ll.Lon, ll.Lat} }

// Viewport is the map's current center and zoom.
type Viewport struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

// Options configures a Map. Width, Height and Padding are in CSS pixels and
// only matter for FitBounds.
type Options struct {
	Center  LatLng
	Zoom    int
	MinZoom int
	MaxZoom int
	Width   int
	Height  int
	Padding int
}

// DefaultOptions centers on the municipal hall at street level.
func DefaultOptions() Options {
	return Options{
		Center:  LatLng{Lat: 13.1391, Lon: 123.7437},
		Zoom:    13,
		MinZoom: 0,
		MaxZoom: 19,
		Width:   1024,
		Height:  768,
		Padding: 50,
	}
}

// Handle identifies a layer attached to the map. The zero Handle is never
// attached.
type Handle uint64

// Host is what the registry needs from the map.
type Host interface {
	Attach(layerID string) Handle
	Detach(h Handle)
	FitBounds(b orb.Bound) bool
}

// Map is the map host: one viewport plus the set of attached layer handles.
type Map struct {
	mu      sync.Mutex
	opts    Options
	vp      Viewport
	handles map[Handle]string
	next    Handle
	closed  bool
	pub     Publisher
}

// NewMap creates the map host. pub may be nil.
func NewMap(opts Options, pub Publisher) *Map {
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = 19
	}
	if opts.MinZoom < 0 || opts.MinZoom > opts.MaxZoom {
		opts.MinZoom = 0
	}
	m := &Map{
		opts:    opts,
		handles: make(map[Handle]string),
		pub:     pub,
	}
	m.vp = Viewport{Center: opts.Center, Zoom: m.clamp(opts.Zoom)}
	return m
}

func (m *Map) clamp(z int) int {
	if z < m.opts.MinZoom {
		return m.opts.MinZoom
	}
	if z > m.opts.MaxZoom {
		return m.opts.MaxZoom
	}
	return z
}

// Attach returns a fresh handle for the layer. After Close it returns the
// zero Handle.
func (m *Map) Attach(layerID string) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0
	}
	m.next++
	m.handles[m.next] = layerID
	return m.next
}

// Detach is a no-op for unknown or zero handles.
func (m *Map) Detach(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, h)
}

func (m *Map) Viewport() Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vp
}

func (m *Map) setView(center LatLng, zoom int) Viewport {
	m.mu.Lock()
	m.vp = Viewport{Center: center, Zoom: m.clamp(zoom)}
	vp := m.vp
	m.mu.Unlock()
	if m.pub != nil {
		m.pub.Publish(viewportEvent(vp))
	}
	return vp
}

// ZoomIn raises the zoom by one level, up to MaxZoom.
func (m *Map) ZoomIn() Viewport {
	vp := m.Viewport()
	return m.setView(vp.Center, vp.Zoom+1)
}

// ZoomOut lowers the zoom by one level, down to MinZoom.
func (m *Map) ZoomOut() Viewport {
	vp := m.Viewport()
	return m.setView(vp.Center, vp.Zoom-1)
}

// FlyTo moves to center. A negative zoom keeps the current level; a
// non-finite center is ignored.
func (m *Map) FlyTo(center LatLng, zoom int) Viewport {
	if !finite(center.Lat, center.Lon) {
		return m.Viewport()
	}
	if zoom < 0 {
		zoom = m.Viewport().Zoom
	}
	return m.setView(center, zoom)
}

// FitBounds centers the viewport on b at the largest zoom that shows all of
// it inside the padded viewport. Empty or non-finite bounds leave the
// viewport untouched.
func (m *Map) FitBounds(b orb.Bound) bool {
	if b.IsEmpty() || !finite(b.Min[0], b.Min[1], b.Max[0], b.Max[1]) {
		return false
	}
	center, zoom := m.boundsView(b)
	m.setView(center, zoom)
	return true
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (m *Map) boundsView(b orb.Bound) (LatLng, int) {
	lo := project.Point(clampLat(b.Min), project.WGS84.ToMercator)
	hi := project.Point(clampLat(b.Max), project.WGS84.ToMercator)

	// world size in meters at the equator for spherical mercator
	world := 2 * math.Pi * 6378137.0
	dx := (hi[0] - lo[0]) / world * tileSize
	dy := (hi[1] - lo[1]) / world * tileSize

	w := float64(m.opts.Width - 2*m.opts.Padding)
	h := float64(m.opts.Height - 2*m.opts.Padding)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	zoom := m.opts.MaxZoom
	scale := math.Inf(1)
	if dx > 0 {
		scale = math.Min(scale, w/dx)
	}
	if dy > 0 {
		scale = math.Min(scale, h/dy)
	}
	if !math.IsInf(scale, 1) {
		zoom = int(math.Floor(math.Log2(scale)))
	}

	mid := orb.Point{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2}
	c := project.Point(mid, project.Mercator.ToWGS84)
	return LatLng{Lat: c[1], Lon: c[0]}, m.clamp(zoom)
}

func clampLat(p orb.Point) orb.Point {
	return orb.Point{p[0], math.Max(-maxLatMercator, math.Min(maxLatMercator, p[1]))}
}

// Close tears the map down: every handle is dropped and later Attach calls
// return the zero Handle.
func (m *Map) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.handles = make(map[Handle]string)
}
