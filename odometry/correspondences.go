package odometry

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/govindsaria/mono-vo/pointcloud"
	"github.com/govindsaria/mono-vo/transform"
)

// Correspondences pairs model points with the detected features they matched.
// Entry i links Model3D[i] (model index ModelIndices[i]) to Features2D[i]
// (feature index FeatureIndices[i]). A Correspondences value only lives for
// one pose-estimation call.
type Correspondences struct {
	Model3D        []r3.Vector
	Features2D     []r2.Point
	ModelIndices   []int
	FeatureIndices []int
}

// Len returns the number of correspondence pairs.
func (c *Correspondences) Len() int { return len(c.Model3D) }

// FindCorrespondences projects every model point through pose, discards
// points behind the camera or outside the image bounds, and matches the
// surviving projections against the frame's detected features. Pairs whose
// match distance exceeds maxDescriptorSpaceDistance are dropped. An empty
// result is not an error; it means pose estimation is impossible this frame
// and the caller decides what that implies.
func FindCorrespondences(
	model *pointcloud.PointCloud,
	pose *transform.Pose,
	intrinsics *transform.PinholeCameraIntrinsics,
	features []r2.Point,
	maxDescriptorSpaceDistance float64,
	pruneRepeats bool,
) *Correspondences {
	visible3D, visible2D, modelIndices := intrinsics.ProjectVisiblePoints(pose, model.Points())
	corr := &Correspondences{}
	if len(visible3D) == 0 || len(features) == 0 {
		return corr
	}
	matcher := BuildMatcher(features)
	matchIndices, _ := matcher.Match(visible2D, maxDescriptorSpaceDistance, pruneRepeats)
	for i, matchIdx := range matchIndices {
		if matchIdx == NoMatch {
			continue
		}
		corr.Model3D = append(corr.Model3D, visible3D[i])
		corr.Features2D = append(corr.Features2D, features[matchIdx])
		corr.ModelIndices = append(corr.ModelIndices, modelIndices[i])
		corr.FeatureIndices = append(corr.FeatureIndices, matchIdx)
	}
	return corr
}
