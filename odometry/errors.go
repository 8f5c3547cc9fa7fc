package odometry

import "github.com/pkg/errors"

// Recoverable pipeline states. None of these may ever leave the shared pose
// partially updated; a frame that fails with one of them leaves the pose
// exactly as it was.
var (
	// ErrNoCorrespondences is returned when the correspondence search yields an
	// empty set; the frame is skipped.
	ErrNoCorrespondences = errors.New("no correspondences between model and detected features")

	// ErrBootstrapFailed is returned when the RANSAC search never reaches the
	// minimum inlier count; bootstrap is retried on the next frame.
	ErrBootstrapFailed = errors.New("bootstrap failed to find a pose with enough inliers")

	// ErrTrackingLost is returned when PnP refinement cannot proceed because
	// correspondences ran out mid-loop.
	ErrTrackingLost = errors.New("tracking lost")
)

// errDegenerateSample marks a minimal sample whose linear solve is singular
// (collinear or coplanar points). It fails a single RANSAC iteration, which
// simply resamples.
var errDegenerateSample = errors.New("degenerate minimal sample")
