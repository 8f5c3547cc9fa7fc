package transform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestCheckValid(t *testing.T) {
	var nilParams *PinholeCameraIntrinsics
	err := nilParams.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	params := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Ppx: 320, Ppy: 240}
	test.That(t, params.CheckValid(), test.ShouldBeNil)

	bad := *params
	bad.Fx = 0
	err = bad.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	bad = *params
	bad.Width = 0
	err = bad.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestPointToPixel(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 400, Ppx: 320, Ppy: 240}
	u, v := params.PointToPixel(0, 0, 2)
	test.That(t, u, test.ShouldAlmostEqual, 320)
	test.That(t, v, test.ShouldAlmostEqual, 240)

	u, v = params.PointToPixel(1, 1, 2)
	test.That(t, u, test.ShouldAlmostEqual, 570)
	test.That(t, v, test.ShouldAlmostEqual, 440)

	// zero depth maps outside the image so it gets filtered
	u, v = params.PointToPixel(1, 1, 0)
	test.That(t, u, test.ShouldEqual, -1)
	test.That(t, v, test.ShouldEqual, -1)
}

func TestPixelToRay(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 400, Ppx: 320, Ppy: 240}
	x, y, z := params.PixelToRay(570, 440)
	test.That(t, x, test.ShouldAlmostEqual, 0.5)
	test.That(t, y, test.ShouldAlmostEqual, 0.5)
	test.That(t, z, test.ShouldAlmostEqual, 1)
}

func TestVisible(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Ppx: 320, Ppy: 240}
	test.That(t, params.Visible(r2.Point{X: 0, Y: 0}), test.ShouldBeTrue)
	test.That(t, params.Visible(r2.Point{X: 639.9, Y: 479.9}), test.ShouldBeTrue)
	test.That(t, params.Visible(r2.Point{X: 640, Y: 100}), test.ShouldBeFalse)
	test.That(t, params.Visible(r2.Point{X: -0.5, Y: 100}), test.ShouldBeFalse)
}

func TestGetCameraMatrix(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 400, Ppx: 320, Ppy: 240}
	k := params.GetCameraMatrix()
	test.That(t, k.At(0, 0), test.ShouldEqual, 500)
	test.That(t, k.At(1, 1), test.ShouldEqual, 400)
	test.That(t, k.At(0, 2), test.ShouldEqual, 320)
	test.That(t, k.At(1, 2), test.ShouldEqual, 240)
	test.That(t, k.At(2, 2), test.ShouldEqual, 1)
}

func TestIntrinsicsFromJSONFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "intrinsics.json")
	body := `{"width_px": 640, "height_px": 480, "fx": 500, "fy": 500, "ppx": 320, "ppy": 240}`
	err := os.WriteFile(fn, []byte(body), 0o600)
	test.That(t, err, test.ShouldBeNil)

	params, err := NewPinholeCameraIntrinsicsFromJSONFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Width, test.ShouldEqual, 640)
	test.That(t, params.Fx, test.ShouldEqual, 500)

	// invalid calibrations are rejected at load time
	err = os.WriteFile(fn, []byte(`{"width_px": 640}`), 0o600)
	test.That(t, err, test.ShouldBeNil)
	_, err = NewPinholeCameraIntrinsicsFromJSONFile(fn)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	_, err = NewPinholeCameraIntrinsicsFromJSONFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
