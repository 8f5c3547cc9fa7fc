// Package odometry estimates the pose of a moving monocular camera over time
// by registering freshly detected 2D image features against a known sparse 3D
// point model. Bootstrap pose recovery runs a RANSAC search over minimal
// 6-point samples; subsequent frames refine the running pose with iterative
// PnP solving over projected-model correspondences.
package odometry

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// EstimationConfig holds the tunable values consumed by the pose estimation
// pipeline.
type EstimationConfig struct {
	// MinInliers is the minimum inlier count for a RANSAC hypothesis to be
	// accepted as a bootstrap pose.
	MinInliers int `json:"min_inliers"`
	// MaxIterations bounds the RANSAC loop.
	MaxIterations int `json:"max_iterations"`
	// DistanceThresholdPx is the reprojection distance under which a
	// correspondence counts as an inlier.
	DistanceThresholdPx float64 `json:"distance_threshold_px"`
	// MaxDescriptorSpaceDistance is the acceptable dissimilarity between a
	// projected model point and its nearest detected feature.
	MaxDescriptorSpaceDistance float64 `json:"max_descriptor_space_distance"`
	// MaxPnPIterations bounds the per-frame refinement loop of the tracker.
	MaxPnPIterations int `json:"max_pnp_iterations"`
	// PruneRepeatedMatches drops the farther of two correspondences claiming
	// the same detected feature.
	PruneRepeatedMatches bool `json:"prune_repeated_matches"`
	// RecoverOnLoss re-runs bootstrap automatically after tracking is lost.
	RecoverOnLoss bool `json:"recover_on_loss"`
	// Seed seeds the RANSAC random source so runs are reproducible.
	Seed int64 `json:"seed"`
}

// DefaultEstimationConfig returns the configuration used when no file is
// provided.
func DefaultEstimationConfig() *EstimationConfig {
	return &EstimationConfig{
		MinInliers:                 10,
		MaxIterations:              300,
		DistanceThresholdPx:        2,
		MaxDescriptorSpaceDistance: 10,
		MaxPnPIterations:           10,
		PruneRepeatedMatches:       true,
		RecoverOnLoss:              true,
	}
}

// LoadEstimationConfig loads an estimation configuration from a json file.
func LoadEstimationConfig(path string) (*EstimationConfig, error) {
	var config EstimationConfig
	//nolint:gosec
	configFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	jsonParser := json.NewDecoder(configFile)
	if err := jsonParser.Decode(&config); err != nil {
		return nil, err
	}
	if err := config.CheckValid(); err != nil {
		return nil, err
	}
	return &config, nil
}

// CheckValid checks if the fields of the configuration are usable, filling in
// defaulted values where zero is not meaningful.
func (cfg *EstimationConfig) CheckValid() error {
	if cfg == nil {
		return errors.New("estimation config is nil")
	}
	if cfg.MinInliers < minSampleSize {
		return errors.Errorf("min_inliers must be at least %d, got %d", minSampleSize, cfg.MinInliers)
	}
	if cfg.MaxIterations <= 0 {
		return errors.Errorf("max_iterations must be positive, got %d", cfg.MaxIterations)
	}
	if cfg.DistanceThresholdPx <= 0 {
		return errors.Errorf("distance_threshold_px must be positive, got %f", cfg.DistanceThresholdPx)
	}
	if cfg.MaxDescriptorSpaceDistance <= 0 {
		return errors.Errorf("max_descriptor_space_distance must be positive, got %f", cfg.MaxDescriptorSpaceDistance)
	}
	if cfg.MaxPnPIterations == 0 {
		cfg.MaxPnPIterations = 10
	}
	if cfg.MaxPnPIterations < 0 {
		return errors.Errorf("max_pnp_iterations must be positive, got %d", cfg.MaxPnPIterations)
	}
	return nil
}
