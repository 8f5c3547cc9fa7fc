package odometry

import (
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/govindsaria/mono-vo/transform"
)

// hypothesis is one RANSAC candidate: a pose and the correspondence indices
// consistent with it.
type hypothesis struct {
	pose    *transform.Pose
	inliers []int
}

// Bootstrapper recovers an initial camera pose with no prior estimate by
// running RANSAC over minimal 6-point samples of candidate correspondences.
type Bootstrapper struct {
	intrinsics *transform.PinholeCameraIntrinsics
	cfg        *EstimationConfig
	random     *rand.Rand
	logger     golog.Logger
}

// NewBootstrapper returns a Bootstrapper using the given seeded random
// source. The same seed over the same input reproduces the same pose.
func NewBootstrapper(
	intrinsics *transform.PinholeCameraIntrinsics,
	cfg *EstimationConfig,
	random *rand.Rand,
	logger golog.Logger,
) *Bootstrapper {
	return &Bootstrapper{intrinsics: intrinsics, cfg: cfg, random: random, logger: logger}
}

// EstimateFirstPose searches for an extrinsic pose agreeing with as many of
// the candidate correspondences as possible. pts3D[i] and pts2D[i] are a
// candidate pair; the set may contain outliers. It returns the winning pose
// and the indices of its inliers, or ErrBootstrapFailed when no hypothesis
// ever reaches MinInliers. The failure is recoverable: retry on the next
// frame, never propagate a bad pose.
func (b *Bootstrapper) EstimateFirstPose(pts3D []r3.Vector, pts2D []r2.Point) (*transform.Pose, []int, error) {
	n := len(pts3D)
	if n < minSampleSize || len(pts2D) != n {
		return nil, nil, ErrBootstrapFailed
	}
	var best hypothesis
	for iter := 0; iter < b.cfg.MaxIterations; iter++ {
		sample := sampleIndices(b.random, n, minSampleSize)
		sample3D := make([]r3.Vector, minSampleSize)
		sample2D := make([]r2.Point, minSampleSize)
		for i, idx := range sample {
			sample3D[i] = pts3D[idx]
			sample2D[i] = pts2D[idx]
		}
		candidate, err := solvePnPLinear(sample3D, sample2D, b.intrinsics)
		if err != nil {
			// degenerate sample, resample
			continue
		}
		inliers := b.fitness(candidate, pts3D, pts2D)
		if len(inliers) > len(best.inliers) {
			best = hypothesis{pose: candidate, inliers: inliers}
		}
		if len(best.inliers) >= b.cfg.MinInliers {
			b.logger.Debugf("bootstrap accepted hypothesis with %d inliers after %d iterations", len(best.inliers), iter+1)
			break
		}
	}
	if len(best.inliers) < b.cfg.MinInliers {
		b.logger.Debugw("bootstrap failed",
			"candidates", n, "best_inliers", len(best.inliers), "min_inliers", b.cfg.MinInliers)
		return nil, nil, ErrBootstrapFailed
	}
	return best.pose, best.inliers, nil
}

// fitness scores a candidate pose: a correspondence is an inlier when the
// projection of its 3D point lands within DistanceThresholdPx of its paired
// 2D feature. For a fixed correspondence set, raising the threshold can only
// grow the returned set.
func (b *Bootstrapper) fitness(pose *transform.Pose, pts3D []r3.Vector, pts2D []r2.Point) []int {
	inliers := make([]int, 0, len(pts3D))
	for i := range pts3D {
		if reprojectionError(pose, pts3D[i], pts2D[i], b.intrinsics) <= b.cfg.DistanceThresholdPx {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// sampleIndices draws k distinct indices uniformly from [0, n).
func sampleIndices(random *rand.Rand, n, k int) []int {
	perm := random.Perm(n)
	return perm[:k]
}
