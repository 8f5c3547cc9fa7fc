package odometry

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// NoMatch marks a query point for which no feature lies within the distance
// bound.
const NoMatch = -1

// featurePoint adapts a detected 2D feature to the k-d tree, carrying its
// index in the frame's feature set.
type featurePoint struct {
	pt  r2.Point
	idx int
}

func (p featurePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(featurePoint)
	switch d {
	case 0:
		return p.pt.X - q.pt.X
	default:
		return p.pt.Y - q.pt.Y
	}
}

func (p featurePoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance, per the kdtree contract.
func (p featurePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(featurePoint)
	dx := p.pt.X - q.pt.X
	dy := p.pt.Y - q.pt.Y
	return dx*dx + dy*dy
}

type featurePoints []featurePoint

func (p featurePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p featurePoints) Len() int                              { return len(p) }
func (p featurePoints) Pivot(d kdtree.Dim) int                { return featurePlane{featurePoints: p, Dim: d}.Pivot() }
func (p featurePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type featurePlane struct {
	kdtree.Dim
	featurePoints
}

func (p featurePlane) Less(i, j int) bool {
	a, b := p.featurePoints[i].pt, p.featurePoints[j].pt
	if p.Dim == 0 {
		return a.X < b.X
	}
	return a.Y < b.Y
}

func (p featurePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p featurePlane) Slice(start, end int) kdtree.SortSlicer {
	p.featurePoints = p.featurePoints[start:end]
	return p
}

func (p featurePlane) Swap(i, j int) {
	p.featurePoints[i], p.featurePoints[j] = p.featurePoints[j], p.featurePoints[i]
}

// SpatialMatcher is a nearest-neighbor index over one frame's detected 2D
// features. It is rebuilt once per frame and queried with the projections of
// the visible model points.
type SpatialMatcher struct {
	tree *kdtree.Tree
	size int
}

// BuildMatcher constructs the search index over the given feature points.
func BuildMatcher(features []r2.Point) *SpatialMatcher {
	pts := make(featurePoints, len(features))
	for i, f := range features {
		pts[i] = featurePoint{pt: f, idx: i}
	}
	if len(pts) == 0 {
		return &SpatialMatcher{}
	}
	return &SpatialMatcher{tree: kdtree.New(pts, false), size: len(pts)}
}

// Size returns the number of indexed feature points.
func (m *SpatialMatcher) Size() int { return m.size }

// Match returns, for each query point, the index of its nearest indexed
// feature and the Euclidean pixel distance to it. Queries whose nearest
// neighbor lies beyond maxDistance get NoMatch. With pruneRepeats, when two
// queries map to the same feature only the closer query keeps the match; the
// other is marked NoMatch so one detected feature is never claimed twice.
func (m *SpatialMatcher) Match(queries []r2.Point, maxDistance float64, pruneRepeats bool) ([]int, []float64) {
	indices := make([]int, len(queries))
	distances := make([]float64, len(queries))
	for i := range indices {
		indices[i] = NoMatch
		distances[i] = math.Inf(1)
	}
	if m.tree == nil {
		return indices, distances
	}
	for i, q := range queries {
		got, distSq := m.tree.Nearest(featurePoint{pt: q})
		if got == nil {
			continue
		}
		dist := math.Sqrt(distSq)
		if dist > maxDistance {
			continue
		}
		indices[i] = got.(featurePoint).idx
		distances[i] = dist
	}
	if pruneRepeats {
		pruneRepeatedMatches(indices, distances)
	}
	return indices, distances
}

// pruneRepeatedMatches keeps, for every feature index claimed by more than
// one query, only the claim with the smallest distance.
func pruneRepeatedMatches(indices []int, distances []float64) {
	best := make(map[int]int, len(indices))
	for i, idx := range indices {
		if idx == NoMatch {
			continue
		}
		prev, seen := best[idx]
		if !seen {
			best[idx] = i
			continue
		}
		if distances[i] < distances[prev] {
			indices[prev] = NoMatch
			distances[prev] = math.Inf(1)
			best[idx] = i
		} else {
			indices[i] = NoMatch
			distances[i] = math.Inf(1)
		}
	}
}
