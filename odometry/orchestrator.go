package odometry

import (
	"context"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/govindsaria/mono-vo/pointcloud"
	"github.com/govindsaria/mono-vo/transform"
)

// State is the mode of the odometry pipeline.
type State int

const (
	// StateUninitialized means no frame has been processed yet.
	StateUninitialized State = iota
	// StateBootstrapping means the pipeline is searching for an initial pose.
	StateBootstrapping
	// StateTracking means a pose is held and frames refine it incrementally.
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapping:
		return "bootstrapping"
	case StateTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Frame carries one image's worth of detected 2D features and the capture
// timestamp. Feature detection itself happens outside the pipeline.
type Frame struct {
	Features []r2.Point
	Time     time.Time
}

// FeatureDetector is the external capability that turns a raw image into the
// frame's feature set. Implementations must be deterministic per input image
// and may return an empty set.
type FeatureDetector interface {
	Detect(img image.Image) ([]r2.Point, error)
}

// PoseSink consumes each accepted pose together with its source timestamp.
// The pipeline calls it exactly once per frame for which a pose was
// produced, never for failed frames.
type PoseSink interface {
	PublishPose(pose *transform.Pose, t time.Time) error
}

// Orchestrator owns the pose state machine and drives the per-frame
// pipeline. Frames are processed strictly one at a time: the pose read at
// the start of frame k's correspondence search is exactly the pose produced
// by frame k-1.
type Orchestrator struct {
	cfg        *EstimationConfig
	intrinsics *transform.PinholeCameraIntrinsics
	model      *pointcloud.PointCloud
	sink       PoseSink
	logger     golog.Logger

	bootstrapper *Bootstrapper
	tracker      *Tracker

	mu         sync.Mutex
	state      State
	pose       *transform.Pose
	frameCount int

	frames chan Frame
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInitialPose seeds the pipeline with a known starting pose, skipping
// bootstrap entirely for the first frame.
func WithInitialPose(pose *transform.Pose) Option {
	return func(o *Orchestrator) {
		o.pose = pose.Clone()
		o.state = StateTracking
	}
}

// WithPoseSink registers the consumer of accepted poses.
func WithPoseSink(sink PoseSink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// NewOrchestrator builds the pipeline around a loaded model. A missing or
// empty model is fatal: without it no correspondence can ever be found.
func NewOrchestrator(
	cfg *EstimationConfig,
	intrinsics *transform.PinholeCameraIntrinsics,
	model *pointcloud.PointCloud,
	logger golog.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, err
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if model == nil || model.Size() == 0 {
		return nil, errors.New("cannot start odometry without a model point cloud")
	}
	random := rand.New(rand.NewSource(cfg.Seed))
	o := &Orchestrator{
		cfg:          cfg,
		intrinsics:   intrinsics,
		model:        model,
		logger:       logger,
		bootstrapper: NewBootstrapper(intrinsics, cfg, random, logger),
		tracker:      NewTracker(intrinsics, cfg, logger),
		state:        StateUninitialized,
		frames:       make(chan Frame, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// State returns the current pipeline mode.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pose returns a copy of the current pose, or nil before any pose has been
// accepted.
func (o *Orchestrator) Pose() *transform.Pose {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pose == nil {
		return nil
	}
	return o.pose.Clone()
}

// FrameCount returns the number of frames handed to ProcessFrame so far.
func (o *Orchestrator) FrameCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frameCount
}

// ProcessFrame runs the full pipeline step for one frame and returns the
// accepted pose. Recoverable failures return one of the sentinel errors and
// leave the held pose unchanged.
func (o *Orchestrator) ProcessFrame(frame Frame) (*transform.Pose, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frameCount++

	var pose *transform.Pose
	var err error
	switch o.state {
	case StateUninitialized, StateBootstrapping:
		o.state = StateBootstrapping
		pose, err = o.bootstrapFrame(frame)
		if err != nil {
			return nil, err
		}
		o.state = StateTracking
	case StateTracking:
		pose, err = o.tracker.EstimateMotion(o.pose, o.model, frame.Features)
		if err != nil {
			if o.cfg.RecoverOnLoss {
				o.logger.Infow("tracking lost, scheduling bootstrap", "frame", o.frameCount)
				o.state = StateBootstrapping
			}
			return nil, err
		}
	}
	o.pose = pose
	if o.sink != nil {
		if err := o.sink.PublishPose(pose.Clone(), frame.Time); err != nil {
			o.logger.Errorw("failed to publish pose", "error", err)
		}
	}
	return pose.Clone(), nil
}

// bootstrapFrame pairs model points with detections and runs the RANSAC
// search. Candidate pairs are aligned by index: the bootstrap contract
// assumes a detector whose output follows model order (e.g. features
// detected on a rendered view of the model). Misaligned pairs behave as
// outliers and are handled by the RANSAC fitness check.
func (o *Orchestrator) bootstrapFrame(frame Frame) (*transform.Pose, error) {
	n := len(frame.Features)
	if o.model.Size() < n {
		n = o.model.Size()
	}
	if n < minSampleSize {
		return nil, ErrNoCorrespondences
	}
	pts3D := o.model.Points()[:n]
	pts2D := frame.Features[:n]
	pose, inliers, err := o.bootstrapper.EstimateFirstPose(pts3D, pts2D)
	if err != nil {
		return nil, err
	}
	o.logger.Infow("bootstrap pose accepted", "frame", o.frameCount, "inliers", len(inliers))
	return pose, nil
}

// ProcessImage runs feature detection on a raw image and processes the
// resulting frame.
func (o *Orchestrator) ProcessImage(detector FeatureDetector, img image.Image, at time.Time) (*transform.Pose, error) {
	features, err := detector.Detect(img)
	if err != nil {
		return nil, errors.Wrap(err, "feature detection failed")
	}
	return o.ProcessFrame(Frame{Features: features, Time: at})
}

// AddFrame queues a frame for Run. When a frame is already waiting, the
// oldest is dropped so processing never falls behind the camera.
func (o *Orchestrator) AddFrame(frame Frame) {
	for {
		select {
		case o.frames <- frame:
			return
		default:
		}
		select {
		case <-o.frames:
		default:
		}
	}
}

// Run processes queued frames sequentially until the context is done.
// Recoverable per-frame errors are logged and the loop continues.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-o.frames:
			if _, err := o.ProcessFrame(frame); err != nil {
				o.logger.Debugw("frame skipped", "frame", o.FrameCount(), "error", err)
			}
		}
	}
}
