package odometry

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/govindsaria/mono-vo/transform"
)

// minSampleSize is the number of 3D↔2D pairs needed by the linear minimal
// solve: each pair contributes two equations against the 11 degrees of
// freedom of the projection matrix.
const minSampleSize = 6

// rcondDegenerate is the relative singular value floor under which the DLT
// system is considered rank deficient.
const rcondDegenerate = 1e-9

// solvePnPLinear recovers an extrinsic pose from at least 6 paired 3D model
// points and 2D pixel observations via a direct linear transform. Collinear
// or coplanar samples make the system singular and return
// errDegenerateSample so a RANSAC caller can resample.
func solvePnPLinear(pts3D []r3.Vector, pts2D []r2.Point, intrinsics *transform.PinholeCameraIntrinsics) (*transform.Pose, error) {
	n := len(pts3D)
	if n < minSampleSize || len(pts2D) != n {
		return nil, errDegenerateSample
	}
	a := mat.NewDense(2*n, 12, nil)
	for i := 0; i < n; i++ {
		p := pts3D[i]
		u, v := pts2D[i].X, pts2D[i].Y
		a.SetRow(2*i, []float64{
			p.X, p.Y, p.Z, 1,
			0, 0, 0, 0,
			-u * p.X, -u * p.Y, -u * p.Z, -u,
		})
		a.SetRow(2*i+1, []float64{
			0, 0, 0, 0,
			p.X, p.Y, p.Z, 1,
			-v * p.X, -v * p.Y, -v * p.Z, -v,
		})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errDegenerateSample
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[10]/values[0] < rcondDegenerate {
		return nil, errDegenerateSample
	}
	var v mat.Dense
	svd.VTo(&v)
	projData := make([]float64, 12)
	for i := range projData {
		projData[i] = v.At(i, 11)
	}
	proj := mat.NewDense(3, 4, projData)

	// strip the intrinsics to get the scaled extrinsic matrix
	var kInv mat.Dense
	if err := kInv.Inverse(intrinsics.GetCameraMatrix()); err != nil {
		return nil, errDegenerateSample
	}
	var extrinsic mat.Dense
	extrinsic.Mul(&kInv, proj)

	// orthonormalize the rotation block and recover the scale
	rotBlock := mat.DenseCopyOf(extrinsic.Slice(0, 3, 0, 3))
	var rotSVD mat.SVD
	if ok := rotSVD.Factorize(rotBlock, mat.SVDFull); !ok {
		return nil, errDegenerateSample
	}
	rotValues := rotSVD.Values(nil)
	scale := (rotValues[0] + rotValues[1] + rotValues[2]) / 3.
	if scale < 1e-12 {
		return nil, errDegenerateSample
	}
	var u3, v3 mat.Dense
	rotSVD.UTo(&u3)
	rotSVD.VTo(&v3)
	rot := mat.NewDense(3, 3, nil)
	rot.Mul(&u3, v3.T())
	trans := mat.NewDense(3, 1, []float64{
		extrinsic.At(0, 3) / scale,
		extrinsic.At(1, 3) / scale,
		extrinsic.At(2, 3) / scale,
	})
	// the DLT solution has a sign ambiguity; exactly one of P and -P yields a
	// proper rotation, and the fitness check resolves any leftover mirror
	if mat.Det(rot) < 0 {
		rot.Scale(-1, rot)
		trans.Scale(-1, trans)
	}
	for _, m := range []*mat.Dense{rot, trans} {
		r, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if math.IsNaN(m.At(i, j)) || math.IsInf(m.At(i, j), 0) {
					return nil, errDegenerateSample
				}
			}
		}
	}
	return transform.NewPose(rot, trans), nil
}

// expSO3 is the Rodrigues map from an axis-angle vector to a rotation matrix.
func expSO3(wx, wy, wz float64) *mat.Dense {
	theta := math.Sqrt(wx*wx + wy*wy + wz*wz)
	k := mat.NewDense(3, 3, []float64{
		0, -wz, wy,
		wz, 0, -wx,
		-wy, wx, 0,
	})
	out := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if theta < 1e-12 {
		out.Add(out, k)
		return out
	}
	var k2 mat.Dense
	k2.Mul(k, k)
	var term mat.Dense
	term.Scale(math.Sin(theta)/theta, k)
	out.Add(out, &term)
	term.Scale((1-math.Cos(theta))/(theta*theta), &k2)
	out.Add(out, &term)
	return out
}

// refinePnP minimizes the reprojection error of the given correspondences
// over the pose with Gauss-Newton iterations, starting from guess. Points
// that fall behind the camera during an iteration are excluded from that
// iteration's system. It returns the refined pose and the final mean
// reprojection error in pixels.
func refinePnP(
	guess *transform.Pose,
	pts3D []r3.Vector,
	pts2D []r2.Point,
	intrinsics *transform.PinholeCameraIntrinsics,
	maxIterations int,
) (*transform.Pose, float64, error) {
	pose := guess.Clone()
	meanErr := math.Inf(1)
	for iter := 0; iter < maxIterations; iter++ {
		jtj := mat.NewDense(6, 6, nil)
		jtr := mat.NewVecDense(6, nil)
		used := 0
		totalErr := 0.
		for i := range pts3D {
			camPt := pose.TransformPoint(pts3D[i])
			if camPt.Z <= 0 {
				continue
			}
			used++
			u, v := intrinsics.PointToPixel(camPt.X, camPt.Y, camPt.Z)
			ru := u - pts2D[i].X
			rv := v - pts2D[i].Y
			totalErr += math.Hypot(ru, rv)

			// pixel jacobian wrt the camera-frame point
			z := camPt.Z
			duDp := [3]float64{intrinsics.Fx / z, 0, -intrinsics.Fx * camPt.X / (z * z)}
			dvDp := [3]float64{0, intrinsics.Fy / z, -intrinsics.Fy * camPt.Y / (z * z)}
			// camera-frame point jacobian wrt the (rotation, translation) update
			var dpDd [3][6]float64
			dpDd[0] = [6]float64{0, camPt.Z, -camPt.Y, 1, 0, 0}
			dpDd[1] = [6]float64{-camPt.Z, 0, camPt.X, 0, 1, 0}
			dpDd[2] = [6]float64{camPt.Y, -camPt.X, 0, 0, 0, 1}

			var ju, jv [6]float64
			for c := 0; c < 6; c++ {
				for k := 0; k < 3; k++ {
					ju[c] += duDp[k] * dpDd[k][c]
					jv[c] += dvDp[k] * dpDd[k][c]
				}
			}
			for r := 0; r < 6; r++ {
				jtr.SetVec(r, jtr.AtVec(r)+ju[r]*ru+jv[r]*rv)
				for c := 0; c < 6; c++ {
					jtj.Set(r, c, jtj.At(r, c)+ju[r]*ju[c]+jv[r]*jv[c])
				}
			}
		}
		if used < 3 {
			return nil, 0, errDegenerateSample
		}
		meanErr = totalErr / float64(used)

		var delta mat.VecDense
		if err := delta.SolveVec(jtj, jtr); err != nil {
			return nil, 0, errDegenerateSample
		}
		delta.ScaleVec(-1, &delta)

		rotUpdate := expSO3(delta.AtVec(0), delta.AtVec(1), delta.AtVec(2))
		var newRot, newTrans mat.Dense
		newRot.Mul(rotUpdate, pose.Rotation)
		newTrans.Mul(rotUpdate, pose.Translation)
		newTrans.Add(&newTrans, mat.NewDense(3, 1, []float64{delta.AtVec(3), delta.AtVec(4), delta.AtVec(5)}))
		pose = transform.NewPose(mat.DenseCopyOf(&newRot), mat.DenseCopyOf(&newTrans))

		if mat.Norm(&delta, 2) < 1e-12 {
			break
		}
	}
	return pose, meanErr, nil
}

// reprojectionError returns the Euclidean pixel distance between the
// projection of pt through pose and the observed feature, or +Inf when the
// point is behind the camera.
func reprojectionError(pose *transform.Pose, pt r3.Vector, observed r2.Point, intrinsics *transform.PinholeCameraIntrinsics) float64 {
	proj, err := intrinsics.ProjectPoint(pose, pt)
	if err != nil {
		return math.Inf(1)
	}
	return math.Hypot(proj.X-observed.X, proj.Y-observed.Y)
}
