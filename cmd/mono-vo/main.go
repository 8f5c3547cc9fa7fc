// Command mono-vo runs model-based monocular visual odometry over a recorded
// sequence of detected feature sets, printing the estimated pose per frame.
package main

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"github.com/govindsaria/mono-vo/odometry"
	"github.com/govindsaria/mono-vo/pointcloud"
	"github.com/govindsaria/mono-vo/transform"
)

var logger = golog.NewLogger("mono-vo")

// frameRecord is one serialized frame: a capture time and the features
// detected in it.
type frameRecord struct {
	TimeNs   int64        `json:"time_ns"`
	Features [][2]float64 `json:"features"`
}

func loadFrames(path string) ([]odometry.Frame, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	var records []frameRecord
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, err
	}
	frames := make([]odometry.Frame, len(records))
	for i, rec := range records {
		features := make([]r2.Point, len(rec.Features))
		for j, ft := range rec.Features {
			features[j] = r2.Point{X: ft[0], Y: ft[1]}
		}
		frames[i] = odometry.Frame{Features: features, Time: time.Unix(0, rec.TimeNs)}
	}
	return frames, nil
}

// logSink prints each accepted pose.
type logSink struct {
	logger golog.Logger
}

func (s *logSink) PublishPose(pose *transform.Pose, t time.Time) error {
	s.logger.Infow("pose",
		"time", t,
		"rotation", mat.Formatted(pose.Rotation, mat.Prefix("           ")),
		"translation", mat.Formatted(pose.Translation.T()),
	)
	return nil
}

func main() {
	modelPath := flag.String("model", "", "path to the sparse model point cloud (pcd)")
	intrinsicsPath := flag.String("intrinsics", "", "path to the camera intrinsics (json)")
	configPath := flag.String("config", "", "path to the estimation config (json), defaults used when empty")
	framesPath := flag.String("frames", "", "path to the recorded feature sets (json)")
	flag.Parse()

	if *modelPath == "" || *intrinsicsPath == "" || *framesPath == "" {
		logger.Fatal("-model, -intrinsics and -frames are required")
	}

	model, err := pointcloud.NewFromFile(*modelPath, logger)
	if err != nil {
		logger.Fatalw("cannot load model, pipeline cannot start", "error", err)
	}
	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(*intrinsicsPath)
	if err != nil {
		logger.Fatalw("cannot load camera intrinsics", "error", err)
	}
	cfg := odometry.DefaultEstimationConfig()
	if *configPath != "" {
		cfg, err = odometry.LoadEstimationConfig(*configPath)
		if err != nil {
			logger.Fatalw("cannot load estimation config", "error", err)
		}
	}
	frames, err := loadFrames(*framesPath)
	if err != nil {
		logger.Fatalw("cannot load frames", "error", err)
	}

	orch, err := odometry.NewOrchestrator(cfg, intrinsics, model, logger,
		odometry.WithPoseSink(&logSink{logger: logger}))
	if err != nil {
		logger.Fatalw("cannot build pipeline", "error", err)
	}

	start := time.Now()
	accepted := 0
	for i, frame := range frames {
		if _, err := orch.ProcessFrame(frame); err != nil {
			logger.Infow("frame skipped", "frame", i, "state", orch.State(), "error", err)
			continue
		}
		accepted++
	}
	logger.Infow("sequence done",
		"frames", len(frames),
		"accepted", accepted,
		"elapsed", time.Since(start),
	)
}
