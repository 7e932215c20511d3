package scoring

import (
	"fmt"
	"math"
)

// Weights defines the relative importance of the deadline and priority factors.
// They must sum to 1.0 (±0.001 tolerance).
type Weights struct {
	Deadline float64
	Priority float64
}

// DefaultWeights lets time pressure dominate declared importance.
func DefaultWeights() Weights {
	return Weights{
		Deadline: 0.7,
		Priority: 0.3,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Deadline + w.Priority
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range []float64{w.Deadline, w.Priority} {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}

// Config is the immutable engine configuration.
type Config struct {
	Weights Weights
	// Scores closer than this are ranked by deadline instead.
	TieTolerance float64
}

func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights(),
		TieTolerance: 0.1,
	}
}

func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.TieTolerance < 0 {
		return fmt.Errorf("negative tie tolerance: %f", c.TieTolerance)
	}
	return nil
}
