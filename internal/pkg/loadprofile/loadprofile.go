package loadprofile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrInvalidConfig is returned when a profile is constructed with
// parameters that cannot produce a well formed time series.
var ErrInvalidConfig = errors.New("loadprofile: invalid configuration")

// Config holds the synthesizer parameters.
type Config struct {
	BaseLoadMW float64 `json:"BaseLoadMW"`
	PeakLoadMW float64 `json:"PeakLoadMW"`
	Hours      float64 `json:"Hours"`
	Dt         float64 `json:"Dt"`
	NoiseStd   float64 `json:"NoiseStd"`
}

// Profile is an immutable demand time series aligned to a fixed step size.
// Construct once per run; read-only thereafter.
type Profile struct {
	dt     float64
	time   []float64
	demand []float64
}

// New returns a Profile synthesized from a json configuration.
// Noise is drawn from the rng parameter, never from the global source,
// so callers control reproducibility.
func New(jsonConfig []byte, rng *rand.Rand) (Profile, error) {
	config := Config{}
	err := json.Unmarshal(jsonConfig, &config)
	if err != nil {
		return Profile{}, err
	}
	return Synthesize(config, rng)
}

// Synthesize generates a duck-curve demand series: a Gaussian evening peak
// centered at hour 19 over a slow sinusoidal swing, plus independent
// Gaussian noise per sample. Negative demand is possible with large noise
// and is deliberately not clipped; guarding against it is the caller's
// responsibility.
func Synthesize(config Config, rng *rand.Rand) (Profile, error) {
	if err := validate(config); err != nil {
		return Profile{}, err
	}
	if config.NoiseStd > 0 && rng == nil {
		return Profile{}, fmt.Errorf("%w: NoiseStd > 0 requires a random source", ErrInvalidConfig)
	}

	n := int(math.Floor(config.Hours / config.Dt))
	time := make([]float64, n)
	demand := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) * config.Dt
		time[i] = t
		demand[i] = shape(config, t)
		if config.NoiseStd > 0 {
			demand[i] += rng.NormFloat64() * config.NoiseStd
		}
	}
	return Profile{config.Dt, time, demand}, nil
}

// FromSamples wraps an externally prepared demand series. The grid treats
// synthesized and external profiles identically.
func FromSamples(dt float64, samples []float64) (Profile, error) {
	if dt <= 0 {
		return Profile{}, fmt.Errorf("%w: Dt must be positive", ErrInvalidConfig)
	}
	if len(samples) == 0 {
		return Profile{}, fmt.Errorf("%w: empty demand series", ErrInvalidConfig)
	}

	time := make([]float64, len(samples))
	demand := make([]float64, len(samples))
	for i, s := range samples {
		time[i] = float64(i) * dt
		demand[i] = s
	}
	return Profile{dt, time, demand}, nil
}

func validate(c Config) error {
	switch {
	case c.Dt <= 0:
		return fmt.Errorf("%w: Dt must be positive", ErrInvalidConfig)
	case c.Hours < c.Dt:
		return fmt.Errorf("%w: Hours must cover at least one step", ErrInvalidConfig)
	case c.PeakLoadMW < c.BaseLoadMW:
		return fmt.Errorf("%w: PeakLoadMW below BaseLoadMW", ErrInvalidConfig)
	case c.NoiseStd < 0:
		return fmt.Errorf("%w: NoiseStd must be nonnegative", ErrInvalidConfig)
	}
	return nil
}

func shape(c Config, t float64) float64 {
	evening := (c.PeakLoadMW - c.BaseLoadMW) * math.Exp(-0.5*math.Pow((t-19)/3, 2))
	swing := 0.2 * c.BaseLoadMW * math.Sin(0.5*t)
	return c.BaseLoadMW + evening + swing
}

// Dt is a getter for the profile step size in hours
func (p Profile) Dt() float64 {
	return p.dt
}

// Len returns the number of demand samples
func (p Profile) Len() int {
	return len(p.demand)
}

// Time returns the sample instants in hours. Callers must not modify.
func (p Profile) Time() []float64 {
	return p.time
}

// Demand returns the demand samples in MW. Callers must not modify.
func (p Profile) Demand() []float64 {
	return p.demand
}
