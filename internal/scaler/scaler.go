// Package scaler reproduces the MinMax feature scaling used when the
// irradiance model was trained. Parameters are exported from the training
// pipeline as a JSON artifact and loaded once at startup.
package scaler

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mkallio/skycast-go/internal/errors"
)

// Parameters holds per-feature MinMax scaling arrays as exported by the
// training pipeline. Field names follow the exported artifact.
type Parameters struct {
	Min       []float64 `json:"min_"`        // -data_min_ / data_range_
	Scale     []float64 `json:"scale_"`      // 1 / data_range_
	DataMin   []float64 `json:"data_min_"`   // minimum value per feature in training data
	DataMax   []float64 `json:"data_max_"`   // maximum value per feature in training data
	DataRange []float64 `json:"data_range_"` // data_max_ - data_min_ per feature
}

// Store exposes forward and inverse MinMax transforms. It is immutable after
// Load and safe for concurrent use.
type Store struct {
	params Parameters
}

// Load reads scaler parameters from the JSON artifact at path. A missing or
// malformed artifact is a configuration error; callers treat it as fatal at
// startup since forecasts cannot be produced without scaling data.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading scaler artifact: %w", err)).
			Component("scaler").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}

	var params Parameters
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, errors.New(fmt.Errorf("parsing scaler artifact: %w", err)).
			Component("scaler").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}

	store, err := NewStore(params)
	if err != nil {
		return nil, errors.New(err).Context("path", path).Build()
	}
	return store, nil
}

// NewStore validates the parameter arrays and returns a Store.
func NewStore(params Parameters) (*Store, error) {
	n := len(params.DataMin)
	if n == 0 {
		return nil, errors.Newf("scaler parameters are empty").
			Component("scaler").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if len(params.DataMax) != n || len(params.DataRange) != n {
		return nil, errors.Newf("scaler parameter arrays have mismatched lengths: data_min=%d data_max=%d data_range=%d",
			n, len(params.DataMax), len(params.DataRange)).
			Component("scaler").
			Category(errors.CategoryConfiguration).
			Build()
	}
	for i, r := range params.DataRange {
		if r == 0 {
			return nil, errors.Newf("scaler data_range_ is zero at feature %d", i).
				Component("scaler").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	return &Store{params: params}, nil
}

// FeatureCount returns the number of features the scaler was trained on.
func (s *Store) FeatureCount() int {
	return len(s.params.DataMin)
}

// Forward scales features into the model's normalized space:
// x_scaled = (x - data_min_) / data_range_. Values outside the training range
// extrapolate linearly, matching the trained model's semantics.
func (s *Store) Forward(features []float64) ([]float64, error) {
	if err := s.checkLength(len(features)); err != nil {
		return nil, err
	}
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.params.DataMin[i]) / s.params.DataRange[i]
	}
	return out, nil
}

// Inverse recovers original-scale values from model outputs:
// x = x_scaled * data_range_ + data_min_.
func (s *Store) Inverse(scaled []float64) ([]float64, error) {
	if err := s.checkLength(len(scaled)); err != nil {
		return nil, err
	}
	out := make([]float64, len(scaled))
	for i, v := range scaled {
		out[i] = v*s.params.DataRange[i] + s.params.DataMin[i]
	}
	return out, nil
}

// InverseScalar inverse-scales a single model output using feature 0.
// The sky-camera CNN emits one scalar, so this is the hot path.
func (s *Store) InverseScalar(scaled float64) float64 {
	return scaled*s.params.DataRange[0] + s.params.DataMin[0]
}

func (s *Store) checkLength(got int) error {
	if got != len(s.params.DataMin) {
		return errors.Newf("feature length mismatch: expected %d, got %d", len(s.params.DataMin), got).
			Component("scaler").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
