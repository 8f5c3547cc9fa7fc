package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pose stores the extrinsic camera pose as a 3x3 rotation matrix and a 3x1
// translation vector, mapping world coordinates into the camera frame.
type Pose struct {
	Rotation    *mat.Dense
	Translation *mat.Dense
}

// NewPose returns a new pointer to a Pose from a rotation and a translation matrix.
func NewPose(rotation, translation *mat.Dense) *Pose {
	return &Pose{
		Rotation:    rotation,
		Translation: translation,
	}
}

// NewIdentityPose returns the pose with identity rotation and zero translation.
func NewIdentityPose() *Pose {
	rot := mat.NewDense(3, 3, nil)
	rot.Set(0, 0, 1)
	rot.Set(1, 1, 1)
	rot.Set(2, 2, 1)
	return &Pose{
		Rotation:    rot,
		Translation: mat.NewDense(3, 1, nil),
	}
}

// NewPoseFromMat creates a pointer to a Pose from a 3x4 extrinsic dense matrix.
func NewPoseFromMat(extrinsic *mat.Dense) (*Pose, error) {
	r, c := extrinsic.Dims()
	if r != 3 || c != 4 {
		return nil, errors.Errorf("extrinsic matrix must be 3x4, got %dx%d", r, c)
	}
	t := mat.NewDense(3, 1, []float64{extrinsic.At(0, 3), extrinsic.At(1, 3), extrinsic.At(2, 3)})
	rot := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot.Set(i, j, extrinsic.At(i, j))
		}
	}
	return &Pose{Rotation: rot, Translation: t}, nil
}

// Clone returns a deep copy of the pose.
func (p *Pose) Clone() *Pose {
	return &Pose{
		Rotation:    mat.DenseCopyOf(p.Rotation),
		Translation: mat.DenseCopyOf(p.Translation),
	}
}

// ExtrinsicMat returns the 3x4 extrinsic matrix [R|t].
func (p *Pose) ExtrinsicMat() *mat.Dense {
	var extrinsic mat.Dense
	extrinsic.Augment(p.Rotation, p.Translation)
	return mat.DenseCopyOf(&extrinsic)
}

// TransformPoint maps a world point into the camera frame: R*p + t.
func (p *Pose) TransformPoint(pt r3.Vector) r3.Vector {
	v := mat.NewDense(3, 1, []float64{pt.X, pt.Y, pt.Z})
	var out mat.Dense
	out.Mul(p.Rotation, v)
	out.Add(&out, p.Translation)
	return r3.Vector{X: out.At(0, 0), Y: out.At(1, 0), Z: out.At(2, 0)}
}
