package odometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestMatchNearest(t *testing.T) {
	features := []r2.Point{
		{X: 0, Y: 0},
		{X: 10, Y: 0},
		{X: 0, Y: 10},
		{X: 10, Y: 10},
	}
	matcher := BuildMatcher(features)
	test.That(t, matcher.Size(), test.ShouldEqual, 4)

	queries := []r2.Point{
		{X: 1, Y: 1},
		{X: 9, Y: 9.5},
	}
	indices, distances := matcher.Match(queries, 5, false)
	test.That(t, indices, test.ShouldResemble, []int{0, 3})
	test.That(t, distances[0], test.ShouldAlmostEqual, math.Sqrt(2), 1e-12)
	test.That(t, distances[1], test.ShouldAlmostEqual, math.Hypot(1, 0.5), 1e-12)
}

func TestMatchMaxDistance(t *testing.T) {
	features := []r2.Point{{X: 0, Y: 0}, {X: 100, Y: 100}}
	matcher := BuildMatcher(features)

	indices, distances := matcher.Match([]r2.Point{{X: 3, Y: 4}, {X: 50, Y: 50}}, 5, false)
	test.That(t, indices[0], test.ShouldEqual, 0)
	test.That(t, distances[0], test.ShouldAlmostEqual, 5)
	test.That(t, indices[1], test.ShouldEqual, NoMatch)
	test.That(t, math.IsInf(distances[1], 1), test.ShouldBeTrue)
}

func TestMatchPruneRepeats(t *testing.T) {
	features := []r2.Point{{X: 0, Y: 0}, {X: 50, Y: 0}}
	matcher := BuildMatcher(features)

	// both queries are nearest to feature 0; only the closer keeps the match
	queries := []r2.Point{{X: 2, Y: 0}, {X: 1, Y: 0}, {X: 49, Y: 0}}
	indices, distances := matcher.Match(queries, 10, true)
	test.That(t, indices[0], test.ShouldEqual, NoMatch)
	test.That(t, indices[1], test.ShouldEqual, 0)
	test.That(t, distances[1], test.ShouldAlmostEqual, 1)
	test.That(t, indices[2], test.ShouldEqual, 1)

	// without pruning both keep feature 0
	indices, _ = matcher.Match(queries, 10, false)
	test.That(t, indices[0], test.ShouldEqual, 0)
	test.That(t, indices[1], test.ShouldEqual, 0)
}

func TestMatchNoDuplicateTargets(t *testing.T) {
	features := []r2.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 6, Y: 0}}
	matcher := BuildMatcher(features)
	queries := []r2.Point{
		{X: 0.5, Y: 0}, {X: 1, Y: 0}, {X: 2.9, Y: 0}, {X: 3.1, Y: 0}, {X: 6, Y: 0},
	}
	indices, _ := matcher.Match(queries, 10, true)
	seen := map[int]bool{}
	for _, idx := range indices {
		if idx == NoMatch {
			continue
		}
		test.That(t, seen[idx], test.ShouldBeFalse)
		seen[idx] = true
	}
}

func TestMatchEmptyFeatures(t *testing.T) {
	matcher := BuildMatcher(nil)
	test.That(t, matcher.Size(), test.ShouldEqual, 0)
	indices, _ := matcher.Match([]r2.Point{{X: 1, Y: 1}}, 10, true)
	test.That(t, indices, test.ShouldResemble, []int{NoMatch})
}
