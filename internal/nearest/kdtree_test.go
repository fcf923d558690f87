package nearest

import (
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

func bruteForce(es []Entry, p orb.Point) (Entry, float64) {
	best, bestKm := Entry{}, math.MaxFloat64
	for _, e := range es {
		if d := geo.DistanceHaversine(p, e.Point) / 1000; d < bestKm {
			best, bestKm = e, d
		}
	}
	return best, bestKm
}

func TestNearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	es := make([]Entry, 500)
	for i := range es {
		es[i] = Entry{Point: orb.Point{123.6 + rng.Float64()*0.3, 13.0 + rng.Float64()*0.3}, Ref: i}
	}
	ix := Build(es)
	if ix.Len() != len(es) {
		t.Fatalf("Len = %d", ix.Len())
	}
	for i := 0; i < 200; i++ {
		q := orb.Point{123.5 + rng.Float64()*0.5, 12.9 + rng.Float64()*0.5}
		got, km, ok := ix.Nearest(q)
		want, wantKm := bruteForce(es, q)
		if !ok {
			t.Fatal("Nearest on non-empty index returned !ok")
		}
		if math.Abs(km-wantKm) > 1e-9 {
			t.Fatalf("query %v: got ref %d (%.6f km), want ref %d (%.6f km)", q, got.Ref, km, want.Ref, wantKm)
		}
	}
}

func TestNearestAcrossAntimeridian(t *testing.T) {
	es := []Entry{
		{Point: orb.Point{-179.95, 0}, Ref: 1},
		{Point: orb.Point{170, 0}, Ref: 2},
		{Point: orb.Point{175, 5}, Ref: 3},
		{Point: orb.Point{0, 0}, Ref: 4},
		{Point: orb.Point{-170, -5}, Ref: 5},
	}
	got, _, _ := Build(es).Nearest(orb.Point{179.95, 0})
	if got.Ref != 1 {
		t.Errorf("got ref %d, want 1", got.Ref)
	}

	rng := rand.New(rand.NewSource(11))
	world := make([]Entry, 400)
	for i := range world {
		lon := 175 + rng.Float64()*10
		if lon > 180 {
			lon -= 360
		}
		world[i] = Entry{Point: orb.Point{lon, -5 + rng.Float64()*10}, Ref: i}
	}
	ix := Build(world)
	for i := 0; i < 200; i++ {
		lon := 176 + rng.Float64()*8
		if lon > 180 {
			lon -= 360
		}
		q := orb.Point{lon, -4 + rng.Float64()*8}
		_, km, _ := ix.Nearest(q)
		_, wantKm := bruteForce(world, q)
		if math.Abs(km-wantKm) > 1e-9 {
			t.Fatalf("query %v: %.6f km, want %.6f km", q, km, wantKm)
		}
	}
}

func TestNearestEmpty(t *testing.T) {
	if _, _, ok := Build(nil).Nearest(orb.Point{0, 0}); ok {
		t.Error("empty index returned ok")
	}
	var ix *Index
	if ix.Len() != 0 {
		t.Error("nil index Len != 0")
	}
}

func TestNearestExactHit(t *testing.T) {
	es := []Entry{{Point: orb.Point{123.7437, 13.1391}, Ref: 4}, {Point: orb.Point{123.8, 13.2}, Ref: 9}}
	got, km, _ := Build(es).Nearest(orb.Point{123.7437, 13.1391})
	if got.Ref != 4 || km != 0 {
		t.Errorf("got %+v at %f km", got, km)
	}
}

func TestBuildDoesNotReorderInput(t *testing.T) {
	es := []Entry{{Point: orb.Point{3, 3}, Ref: 0}, {Point: orb.Point{1, 1}, Ref: 1}, {Point: orb.Point{2, 2}, Ref: 2}}
	Build(es)
	for i, e := range es {
		if e.Ref != i {
			t.Fatalf("input reordered: %+v", es)
		}
	}
}
