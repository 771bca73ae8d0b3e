package loadprofile

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gotest.tools/v3/assert"
)

func testConfig() Config {
	return Config{
		BaseLoadMW: 40,
		PeakLoadMW: 80,
		Hours:      24,
		Dt:         0.1,
		NoiseStd:   0,
	}
}

func TestSynthesizeLength(t *testing.T) {
	profile, err := Synthesize(testConfig(), nil)
	assert.NilError(t, err)
	assert.Equal(t, profile.Len(), 240)
	assert.Equal(t, len(profile.Time()), 240)
	assert.Equal(t, len(profile.Demand()), 240)
}

func TestSynthesizeLengthTruncates(t *testing.T) {
	config := testConfig()
	config.Hours = 1.05
	profile, err := Synthesize(config, nil)
	assert.NilError(t, err)
	assert.Equal(t, profile.Len(), 10)
}

func TestZeroNoiseMatchesShape(t *testing.T) {
	config := testConfig()
	profile, err := Synthesize(config, nil)
	assert.NilError(t, err)

	for i, d := range profile.Demand() {
		tt := profile.Time()[i]
		expected := config.BaseLoadMW +
			(config.PeakLoadMW-config.BaseLoadMW)*math.Exp(-0.5*math.Pow((tt-19)/3, 2)) +
			0.2*config.BaseLoadMW*math.Sin(0.5*tt)
		assert.Equal(t, d, expected, "sample %v diverges from duck-curve shape", i)
	}
}

func TestEveningPeak(t *testing.T) {
	profile, err := Synthesize(testConfig(), nil)
	assert.NilError(t, err)

	maxIdx := 0
	for i, d := range profile.Demand() {
		if d > profile.Demand()[maxIdx] {
			maxIdx = i
		}
	}
	peakHour := profile.Time()[maxIdx]
	assert.Assert(t, peakHour > 18 && peakHour < 20, "peak at hour %v, want near 19", peakHour)
}

func TestSeedDeterminism(t *testing.T) {
	config := testConfig()
	config.NoiseStd = 1.5

	p1, err := Synthesize(config, rand.New(rand.NewSource(42)))
	assert.NilError(t, err)
	p2, err := Synthesize(config, rand.New(rand.NewSource(42)))
	assert.NilError(t, err)

	for i := range p1.Demand() {
		assert.Equal(t, p1.Demand()[i], p2.Demand()[i], "seeded runs diverge at sample %v", i)
	}
}

func TestNoiseRequiresSource(t *testing.T) {
	config := testConfig()
	config.NoiseStd = 1.5

	_, err := Synthesize(config, nil)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))
}

func TestRejectBadConfig(t *testing.T) {
	config := testConfig()
	config.Dt = 0
	_, err := Synthesize(config, nil)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))

	config = testConfig()
	config.PeakLoadMW = 10
	_, err = Synthesize(config, nil)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))

	config = testConfig()
	config.NoiseStd = -1
	_, err = Synthesize(config, nil)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))
}

func TestFromSamples(t *testing.T) {
	profile, err := FromSamples(0.5, []float64{60, 60, 60})
	assert.NilError(t, err)
	assert.Equal(t, profile.Len(), 3)
	assert.Equal(t, profile.Dt(), 0.5)
	assert.Equal(t, profile.Time()[2], 1.0)
}

func TestFromSamplesRejectsEmpty(t *testing.T) {
	_, err := FromSamples(0.5, nil)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))

	_, err = FromSamples(0, []float64{60})
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))
}
