package odometry

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/govindsaria/mono-vo/pointcloud"
	"github.com/govindsaria/mono-vo/transform"
)

// trackerConvergenceEps stops the refinement loop early once the mean
// reprojection error improves by less than this many pixels between passes.
const trackerConvergenceEps = 1e-10

// Tracker refines a known prior pose against the current frame's detections
// with repeated correspondence search and PnP solving.
type Tracker struct {
	intrinsics *transform.PinholeCameraIntrinsics
	cfg        *EstimationConfig
	logger     golog.Logger
}

// NewTracker returns a Tracker with the given camera intrinsics and
// configuration.
func NewTracker(intrinsics *transform.PinholeCameraIntrinsics, cfg *EstimationConfig, logger golog.Logger) *Tracker {
	return &Tracker{intrinsics: intrinsics, cfg: cfg, logger: logger}
}

// EstimateMotion refines prior against the frame's features over up to
// MaxPnPIterations passes. Each pass rediscovers correspondences under the
// current estimate and solves PnP over all of them; only the final pass
// applies strict de-duplication since it produces the answer used
// downstream. The prior pose is never mutated. If correspondences come up
// empty on any pass, ErrTrackingLost is returned and the caller should treat
// the prior as invalid for future frames.
func (t *Tracker) EstimateMotion(
	prior *transform.Pose,
	model *pointcloud.PointCloud,
	features []r2.Point,
) (*transform.Pose, error) {
	if prior == nil {
		return nil, errors.New("tracker requires a prior pose")
	}
	current := prior.Clone()
	prevErr := math.Inf(1)
	for iter := 0; iter < t.cfg.MaxPnPIterations; iter++ {
		lastIteration := iter == t.cfg.MaxPnPIterations-1
		corr := FindCorrespondences(
			model, current, t.intrinsics, features,
			t.cfg.MaxDescriptorSpaceDistance,
			t.cfg.PruneRepeatedMatches && lastIteration,
		)
		if corr.Len() == 0 {
			t.logger.Debugw("tracking lost", "iteration", iter, "features", len(features))
			return nil, ErrTrackingLost
		}
		refined, meanErr, err := refinePnP(current, corr.Model3D, corr.Features2D, t.intrinsics, t.cfg.MaxPnPIterations)
		if err != nil {
			return nil, ErrTrackingLost
		}
		current = refined
		if math.Abs(prevErr-meanErr) < trackerConvergenceEps {
			break
		}
		prevErr = meanErr
	}
	return current, nil
}
