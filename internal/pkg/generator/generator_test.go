package generator

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"math"
	"math/rand"
	"testing"

	"gotest.tools/v3/assert"
)

func testMachineConfig() MachineConfig {
	return MachineConfig{
		Name:         "TEST_Coal",
		RatedMW:      50,
		InertiaSec:   5.0,
		DampingMWHz:  1.0,
		Droop:        0.05,
		ResponseRate: 0.2,
	}
}

func TestReadConfig(t *testing.T) {
	jsonConfig, err := ioutil.ReadFile("generator_test_config.json")
	assert.NilError(t, err)

	machineConfig := MachineConfig{}
	err = json.Unmarshal(jsonConfig, &machineConfig)
	assert.NilError(t, err)

	assertConfig := MachineConfig{"TEST_Virtual Generator", 50, 5.0, 1.0, 0.05, 0.2}
	assert.Assert(t, machineConfig == assertConfig)
}

func TestNewFromJSON(t *testing.T) {
	jsonConfig, err := ioutil.ReadFile("generator_test_config.json")
	assert.NilError(t, err)

	unit, err := New(jsonConfig)
	assert.NilError(t, err)
	assert.Equal(t, unit.Name(), "TEST_Virtual Generator")
	assert.Equal(t, unit.Config().RatedMW(), 50.0)
}

func TestRejectZeroDroop(t *testing.T) {
	machineConfig := testMachineConfig()
	machineConfig.Droop = 0

	_, err := NewUnit(machineConfig)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))
}

func TestRejectNonpositiveRating(t *testing.T) {
	machineConfig := testMachineConfig()
	machineConfig.RatedMW = 0

	_, err := NewUnit(machineConfig)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))

	machineConfig.RatedMW = -10
	_, err = NewUnit(machineConfig)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))
}

func TestRejectNonpositiveInertia(t *testing.T) {
	machineConfig := testMachineConfig()
	machineConfig.InertiaSec = 0

	_, err := NewUnit(machineConfig)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))
}

func TestRejectResponseRateOutOfRange(t *testing.T) {
	machineConfig := testMachineConfig()

	machineConfig.ResponseRate = 0
	_, err := NewUnit(machineConfig)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))

	machineConfig.ResponseRate = 1.5
	_, err = NewUnit(machineConfig)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))

	machineConfig.ResponseRate = 1.0
	_, err = NewUnit(machineConfig)
	assert.NilError(t, err)
}

func TestRejectNegativeDamping(t *testing.T) {
	machineConfig := testMachineConfig()
	machineConfig.DampingMWHz = -0.5

	_, err := NewUnit(machineConfig)
	assert.Assert(t, errors.Is(err, ErrInvalidConfig))
}

func TestSetpointDroopDirection(t *testing.T) {
	unit, err := NewUnit(testMachineConfig())
	assert.NilError(t, err)

	// over-frequency sheds load, under-frequency picks it up
	nominal := unit.Setpoint(0, 25)
	high := unit.Setpoint(0.1, 25)
	low := unit.Setpoint(-0.1, 25)

	assert.Equal(t, nominal, 25.0)
	assert.Assert(t, high < nominal)
	assert.Assert(t, low > nominal)
}

func TestSetpointClip(t *testing.T) {
	unit, err := NewUnit(testMachineConfig())
	assert.NilError(t, err)

	assert.Equal(t, unit.Setpoint(1.0, 25), 0.0)
	assert.Equal(t, unit.Setpoint(-1.0, 25), 50.0)
}

func TestDispatchEnvelope(t *testing.T) {
	unit, err := NewUnit(testMachineConfig())
	assert.NilError(t, err)

	rng := rand.New(rand.NewSource(1))
	output := 0.0
	for i := 0; i < 1000; i++ {
		freqDev := rng.Float64()*4 - 2
		share := rng.Float64() * 100
		output = unit.Dispatch(output, freqDev, share)
		assert.Assert(t, output >= 0, "output below 0 at step %v: %v", i, output)
		assert.Assert(t, output <= 50, "output above rating at step %v: %v", i, output)
	}
}

func TestDispatchGeometricConvergence(t *testing.T) {
	unit, err := NewUnit(testMachineConfig())
	assert.NilError(t, err)

	setpoint := unit.Setpoint(0, 30)
	assert.Equal(t, setpoint, 30.0)

	output := 0.0
	gap := math.Abs(output - setpoint)
	for i := 0; i < 50; i++ {
		output = unit.Dispatch(output, 0, 30)
		expected := gap * math.Pow(1-unit.Config().ResponseRate(), float64(i+1))
		assert.Assert(t, math.Abs(math.Abs(output-setpoint)-expected) < 1e-9,
			"gap not geometric at step %v", i)
	}
}

func TestDispatchIsPure(t *testing.T) {
	unit, err := NewUnit(testMachineConfig())
	assert.NilError(t, err)

	first := unit.Dispatch(10, 0.05, 30)
	second := unit.Dispatch(10, 0.05, 30)
	assert.Equal(t, first, second, "dispatch must not carry hidden state")
}
