package odometry

import (
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/govindsaria/mono-vo/transform"
)

func testConfig() *EstimationConfig {
	return &EstimationConfig{
		MinInliers:                 6,
		MaxIterations:              300,
		DistanceThresholdPx:        2,
		MaxDescriptorSpaceDistance: 10,
		MaxPnPIterations:           10,
		PruneRepeatedMatches:       true,
		RecoverOnLoss:              true,
		Seed:                       42,
	}
}

func TestFitnessMonotonicity(t *testing.T) {
	logger := golog.NewTestLogger(t)
	truth := transform.NewIdentityPose()
	pts2D := projectExact(truth, scenePoints, testIntrinsics)
	// displace each observation by a different amount so the inlier count
	// varies with the threshold
	for i := range pts2D {
		pts2D[i].X += float64(i) * 0.75
	}

	prevCount := -1
	for _, threshold := range []float64{0.1, 0.5, 1, 2, 4, 8} {
		cfg := testConfig()
		cfg.DistanceThresholdPx = threshold
		b := NewBootstrapper(testIntrinsics, cfg, rand.New(rand.NewSource(0)), logger)
		count := len(b.fitness(truth, scenePoints, pts2D))
		test.That(t, count, test.ShouldBeGreaterThanOrEqualTo, prevCount)
		prevCount = count
	}
	test.That(t, prevCount, test.ShouldEqual, len(scenePoints))
}

func TestEstimateFirstPoseScenario(t *testing.T) {
	logger := golog.NewTestLogger(t)
	// identity focal length and principal point
	intrinsics := &transform.PinholeCameraIntrinsics{Width: 2, Height: 2, Fx: 1, Fy: 1, Ppx: 0, Ppy: 0}
	model := []r3.Vector{
		{X: 0, Y: 0, Z: 5},
		{X: 1, Y: 0, Z: 5},
		{X: 0, Y: 1, Z: 5},
		{X: 1, Y: 1, Z: 5},
		{X: 0, Y: 0, Z: 6},
		{X: 1, Y: 1, Z: 6},
	}
	truth := transform.NewIdentityPose()
	features := projectExact(truth, model, intrinsics)

	cfg := testConfig()
	cfg.MinInliers = 6
	cfg.DistanceThresholdPx = 1
	b := NewBootstrapper(intrinsics, cfg, rand.New(rand.NewSource(1)), logger)

	pose, inliers, err := b.EstimateFirstPose(model, features)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(inliers), test.ShouldEqual, 6)
	test.That(t, mat.EqualApprox(pose.Rotation, truth.Rotation, 1e-4), test.ShouldBeTrue)
	test.That(t, pose.Translation.At(0, 0), test.ShouldAlmostEqual, 0, 1e-4)
	test.That(t, pose.Translation.At(1, 0), test.ShouldAlmostEqual, 0, 1e-4)
	test.That(t, pose.Translation.At(2, 0), test.ShouldAlmostEqual, 0, 1e-4)
}

func TestEstimateFirstPoseWithOutliers(t *testing.T) {
	logger := golog.NewTestLogger(t)
	truth := transform.NewPose(
		expSO3(0.03, -0.02, 0.01),
		mat.NewDense(3, 1, []float64{0.2, -0.1, 0.15}),
	)

	noise := rand.New(rand.NewSource(99))
	var pts3D []r3.Vector
	for i := 0; i < 18; i++ {
		pts3D = append(pts3D, r3.Vector{
			X: noise.Float64()*4 - 2,
			Y: noise.Float64()*4 - 2,
			Z: 4 + noise.Float64()*6,
		})
	}
	pts2D := projectExact(truth, pts3D, testIntrinsics)
	// append outlier pairs whose observations have nothing to do with the pose
	nInliers := len(pts3D)
	for i := 0; i < 8; i++ {
		pts3D = append(pts3D, r3.Vector{
			X: noise.Float64()*4 - 2,
			Y: noise.Float64()*4 - 2,
			Z: 4 + noise.Float64()*6,
		})
		pts2D = append(pts2D, r2.Point{X: noise.Float64() * 640, Y: noise.Float64() * 480})
	}

	cfg := testConfig()
	cfg.MinInliers = 15
	cfg.MaxIterations = 500
	b := NewBootstrapper(testIntrinsics, cfg, rand.New(rand.NewSource(42)), logger)

	pose, inliers, err := b.EstimateFirstPose(pts3D, pts2D)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(inliers), test.ShouldBeGreaterThanOrEqualTo, cfg.MinInliers)
	for i := 0; i < nInliers; i++ {
		test.That(t, reprojectionError(pose, pts3D[i], pts2D[i], testIntrinsics),
			test.ShouldBeLessThan, cfg.DistanceThresholdPx)
	}

	// a fixed seed reproduces the same winning hypothesis
	b2 := NewBootstrapper(testIntrinsics, cfg, rand.New(rand.NewSource(42)), logger)
	pose2, inliers2, err := b2.EstimateFirstPose(pts3D, pts2D)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inliers2, test.ShouldResemble, inliers)
	test.That(t, mat.EqualApprox(pose2.Rotation, pose.Rotation, 1e-12), test.ShouldBeTrue)
	test.That(t, mat.EqualApprox(pose2.Translation, pose.Translation, 1e-12), test.ShouldBeTrue)
}

func TestEstimateFirstPoseFailure(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg := testConfig()
	b := NewBootstrapper(testIntrinsics, cfg, rand.New(rand.NewSource(3)), logger)

	// too few candidates
	_, _, err := b.EstimateFirstPose(scenePoints[:4], projectExact(transform.NewIdentityPose(), scenePoints[:4], testIntrinsics))
	test.That(t, errors.Is(err, ErrBootstrapFailed), test.ShouldBeTrue)

	// observations inconsistent with any single pose
	noise := rand.New(rand.NewSource(5))
	pts2D := make([]r2.Point, len(scenePoints))
	for i := range pts2D {
		pts2D[i] = r2.Point{X: noise.Float64() * 640, Y: noise.Float64() * 480}
	}
	cfg.MinInliers = len(scenePoints)
	cfg.MaxIterations = 50
	b = NewBootstrapper(testIntrinsics, cfg, rand.New(rand.NewSource(3)), logger)
	_, _, err = b.EstimateFirstPose(scenePoints, pts2D)
	test.That(t, errors.Is(err, ErrBootstrapFailed), test.ShouldBeTrue)
}
