package mapstate

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestMapDefaults(t *testing.T) {
	m := NewMap(DefaultOptions(), nil)
	vp := m.Viewport()
	if vp.Center.Lat != 13.1391 || vp.Center.Lon != 123.7437 || vp.Zoom != 13 {
		t.Errorf("default viewport = %+v", vp)
	}
}

func TestMapZoomClamps(t *testing.T) {
	m := NewMap(DefaultOptions(), nil)
	for i := 0; i < 10; i++ {
		m.ZoomIn()
	}
	if z := m.Viewport().Zoom; z != 19 {
		t.Errorf("zoom = %d, want 19", z)
	}
	for i := 0; i < 30; i++ {
		m.ZoomOut()
	}
	if z := m.Viewport().Zoom; z != 0 {
		t.Errorf("zoom = %d, want 0", z)
	}
}

func TestMapFlyTo(t *testing.T) {
	rec := &recorder{}
	m := NewMap(DefaultOptions(), rec)
	vp := m.FlyTo(LatLng{Lat: 13.2, Lon: 123.8}, -1)
	if vp.Zoom != 13 || vp.Center.Lat != 13.2 {
		t.Errorf("FlyTo keep zoom = %+v", vp)
	}
	vp = m.FlyTo(LatLng{Lat: 13.2, Lon: 123.8}, 40)
	if vp.Zoom != 19 {
		t.Errorf("FlyTo zoom not clamped: %d", vp.Zoom)
	}
	if len(rec.events) != 2 || rec.events[1].Type != EventViewport || rec.events[1].Viewport.Zoom != 19 {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestMapFitBounds(t *testing.T) {
	m := NewMap(DefaultOptions(), nil)
	if !m.FitBounds(orb.Bound{Min: orb.Point{123, 13}, Max: orb.Point{124, 14}}) {
		t.Fatal("FitBounds returned false")
	}
	vp := m.Viewport()
	if vp.Zoom != 9 {
		t.Errorf("zoom = %d, want 9", vp.Zoom)
	}
	if math.Abs(vp.Center.Lon-123.5) > 1e-6 || math.Abs(vp.Center.Lat-13.5) > 0.01 {
		t.Errorf("center = %+v", vp.Center)
	}
}

func TestMapFitBoundsPointUsesMaxZoom(t *testing.T) {
	m := NewMap(DefaultOptions(), nil)
	p := orb.Point{123.75, 13.14}
	if !m.FitBounds(p.Bound()) {
		t.Fatal("FitBounds returned false")
	}
	vp := m.Viewport()
	if vp.Zoom != 19 {
		t.Errorf("zoom = %d, want 19", vp.Zoom)
	}
	if math.Abs(vp.Center.Lat-13.14) > 1e-6 || math.Abs(vp.Center.Lon-123.75) > 1e-6 {
		t.Errorf("center = %+v", vp.Center)
	}
}

func TestMapFitBoundsEmpty(t *testing.T) {
	rec := &recorder{}
	m := NewMap(DefaultOptions(), rec)
	if m.FitBounds(orb.Collection{}.Bound()) {
		t.Error("empty bound fitted")
	}
	if len(rec.events) != 0 {
		t.Error("empty bound published a viewport")
	}
}

func TestMapIgnoresNonFinitePositions(t *testing.T) {
	m := NewMap(DefaultOptions(), nil)
	before := m.Viewport()
	nan := math.NaN()
	if m.FitBounds(orb.Bound{Min: orb.Point{nan, nan}, Max: orb.Point{nan, nan}}) {
		t.Error("FitBounds accepted NaN bounds")
	}
	if m.FitBounds(orb.Bound{Min: orb.Point{123, 13}, Max: orb.Point{math.Inf(1), 14}}) {
		t.Error("FitBounds accepted infinite bounds")
	}
	if vp := m.FlyTo(LatLng{Lat: nan, Lon: 123}, 15); vp != before {
		t.Errorf("FlyTo NaN = %+v", vp)
	}
	if m.Viewport() != before {
		t.Errorf("viewport = %+v, want %+v", m.Viewport(), before)
	}
}

func TestMapAttachDetachClose(t *testing.T) {
	m := NewMap(DefaultOptions(), nil)
	a := m.Attach("a")
	b := m.Attach("b")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("handles = %d, %d", a, b)
	}
	m.Detach(a)
	m.Detach(a)
	m.Detach(0)
	if m.isAttached(a) || !m.isAttached(b) {
		t.Error("detach affected the wrong handle")
	}
	m.Close()
	if m.attachedCount() != 0 {
		t.Errorf("attached after close = %d", m.attachedCount())
	}
	if h := m.Attach("c"); h != 0 {
		t.Errorf("Attach after close = %d", h)
	}
}
