// Package nearest answers "closest feature to this point" over a fixed set
// of points with a 2-d tree split alternately on longitude and latitude.
package nearest

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// earthKm matches the radius geo.DistanceHaversine uses.
const earthKm = orb.EarthRadius / 1000

// Entry is one indexed point. Ref points back into the caller's data.
type Entry struct {
	Point orb.Point
	Ref   int
}

type node struct {
	e    Entry
	axis int // 0 lon, 1 lat
	l, r *node
}

// Index is immutable once built and safe for concurrent reads.
type Index struct {
	root *node
	size int
}

// Build copies entries and builds the tree by median split.
func Build(entries []Entry) *Index {
	es := append([]Entry(nil), entries...)
	return &Index{root: build(es, 0), size: len(es)}
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.size
}

func build(es []Entry, depth int) *node {
	if len(es) == 0 {
		return nil
	}
	axis := depth % 2
	mid := len(es) / 2
	selectNth(es, mid, axis)
	n := &node{e: es[mid], axis: axis}
	n.l = build(es[:mid], depth+1)
	n.r = build(es[mid+1:], depth+1)
	return n
}

// selectNth partially orders es so es[n] holds the n-th smallest on axis.
func selectNth(es []Entry, n, axis int) {
	lo, hi := 0, len(es)-1
	for lo < hi {
		p := partition(es, lo, hi, (lo+hi)/2, axis)
		switch {
		case p == n:
			return
		case n < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partition(es []Entry, lo, hi, pivot, axis int) int {
	pv := es[pivot].Point[axis]
	es[pivot], es[hi] = es[hi], es[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if es[j].Point[axis] < pv {
			es[i], es[j] = es[j], es[i]
			i++
		}
	}
	es[i], es[hi] = es[hi], es[i]
	return i
}

// Nearest returns the closest entry and its great-circle distance in km.
// ok is false for an empty index.
func (ix *Index) Nearest(p orb.Point) (best Entry, km float64, ok bool) {
	if ix == nil || ix.root == nil {
		return Entry{}, 0, false
	}
	km = math.MaxFloat64
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		if d := geo.DistanceHaversine(p, n.e.Point) / 1000; d < km {
			km, best = d, n.e
		}
		delta := p[n.axis] - n.e.Point[n.axis]
		near, far := n.l, n.r
		if delta >= 0 {
			near, far = n.r, n.l
		}
		walk(near)
		gap := math.Abs(delta)
		if n.axis == 0 {
			// the far half can also be reached across the antimeridian
			if delta >= 0 {
				gap = math.Min(gap, 180-p[0])
			} else {
				gap = math.Min(gap, 180+p[0])
			}
		}
		if planeKm(p, n.axis, gap) < km {
			walk(far)
		}
	}
	walk(ix.root)
	return best, km, true
}

// planeKm is a lower bound on the distance from p to any point across the
// split plane: the distance to the parallel for latitude splits and to the
// meridian great circle for longitude splits.
func planeKm(p orb.Point, axis int, deg float64) float64 {
	rad := deg * math.Pi / 180
	if axis == 1 {
		return rad * earthKm
	}
	if deg >= 90 {
		return 0
	}
	return earthKm * math.Asin(math.Cos(p[1]*math.Pi/180)*math.Sin(rad))
}
