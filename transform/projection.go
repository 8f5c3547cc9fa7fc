package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrBehindCamera is returned when a 3D point's camera-frame depth is not positive.
var ErrBehindCamera = errors.New("point is behind the camera")

// ProjectPoint projects a 3D world point through the given extrinsic pose and
// the camera intrinsics. It returns ErrBehindCamera when the transformed
// point has depth <= 0.
func (params *PinholeCameraIntrinsics) ProjectPoint(pose *Pose, pt r3.Vector) (r2.Point, error) {
	camPt := pose.TransformPoint(pt)
	if camPt.Z <= 0 {
		return r2.Point{}, ErrBehindCamera
	}
	u, v := params.PointToPixel(camPt.X, camPt.Y, camPt.Z)
	return r2.Point{X: u, Y: v}, nil
}

// ProjectVisiblePoints projects every point of pts through pose, keeping only
// points in front of the camera and inside the image bounds. It returns the
// surviving 3D points, their projections, and their indices into pts.
func (params *PinholeCameraIntrinsics) ProjectVisiblePoints(pose *Pose, pts []r3.Vector) ([]r3.Vector, []r2.Point, []int) {
	visible3D := make([]r3.Vector, 0, len(pts))
	visible2D := make([]r2.Point, 0, len(pts))
	indices := make([]int, 0, len(pts))
	for i, pt := range pts {
		proj, err := params.ProjectPoint(pose, pt)
		if err != nil {
			continue
		}
		if !params.Visible(proj) {
			continue
		}
		visible3D = append(visible3D, pt)
		visible2D = append(visible2D, proj)
		indices = append(indices, i)
	}
	return visible3D, visible2D, indices
}
