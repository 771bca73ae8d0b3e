package generator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidConfig is returned when a unit is constructed with parameters
// outside its physical or control envelope.
var ErrInvalidConfig = errors.New("generator: invalid configuration")

// Unit is a single droop-governed generator. The unit is immutable after
// construction; its dispatch operation is a pure state transition and the
// caller owns the output trajectory.
type Unit struct {
	pid    uuid.UUID
	config Config
}

// Config wraps MachineConfig and hides the internal state.
type Config struct {
	machine MachineConfig
}

// MachineConfig holds the generator's static parameters.
type MachineConfig struct {
	Name         string  `json:"Name"`
	RatedMW      float64 `json:"RatedMW"`
	InertiaSec   float64 `json:"InertiaSec"`
	DampingMWHz  float64 `json:"DampingMWHz"`
	Droop        float64 `json:"Droop"`
	ResponseRate float64 `json:"ResponseRate"`
}

// Name is a getter for the unit name
func (c Config) Name() string {
	return c.machine.Name
}

// RatedMW is a getter for the unit's maximum power output
func (c Config) RatedMW() float64 {
	return c.machine.RatedMW
}

// InertiaSec is a getter for the unit's inertia constant
func (c Config) InertiaSec() float64 {
	return c.machine.InertiaSec
}

// DampingMWHz is a getter for the unit's damping contribution
func (c Config) DampingMWHz() float64 {
	return c.machine.DampingMWHz
}

// Droop is a getter for the unit's droop coefficient
func (c Config) Droop() float64 {
	return c.machine.Droop
}

// ResponseRate is a getter for the fraction of the setpoint gap closed per step
func (c Config) ResponseRate() float64 {
	return c.machine.ResponseRate
}

// New returns a configured Unit
func New(jsonConfig []byte) (Unit, error) {
	machineConfig := MachineConfig{}
	err := json.Unmarshal(jsonConfig, &machineConfig)
	if err != nil {
		return Unit{}, err
	}
	return NewUnit(machineConfig)
}

// NewUnit validates the machine configuration and returns a Unit.
// Validation runs here, never at dispatch time.
func NewUnit(machineConfig MachineConfig) (Unit, error) {
	if err := validate(machineConfig); err != nil {
		return Unit{}, err
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return Unit{}, err
	}

	return Unit{pid, Config{machineConfig}}, nil
}

func validate(m MachineConfig) error {
	switch {
	case m.RatedMW <= 0:
		return fmt.Errorf("%w: %v: RatedMW must be positive", ErrInvalidConfig, m.Name)
	case m.InertiaSec <= 0:
		return fmt.Errorf("%w: %v: InertiaSec must be positive", ErrInvalidConfig, m.Name)
	case m.DampingMWHz < 0:
		return fmt.Errorf("%w: %v: DampingMWHz must be nonnegative", ErrInvalidConfig, m.Name)
	case m.Droop == 0:
		return fmt.Errorf("%w: %v: Droop must be nonzero", ErrInvalidConfig, m.Name)
	case m.ResponseRate <= 0 || m.ResponseRate > 1:
		return fmt.Errorf("%w: %v: ResponseRate must be in (0,1]", ErrInvalidConfig, m.Name)
	}
	return nil
}

// PID is a getter for the unit PID
func (u Unit) PID() uuid.UUID {
	return u.pid
}

// Config returns the unit's static configuration.
func (u Unit) Config() Config {
	return u.config
}

// Name is a getter for the unit name
func (u Unit) Name() string {
	return u.config.Name()
}

// Dispatch advances the unit one step of droop control with inertia-limited
// response. freqDev is the grid frequency deviation from nominal (Hz),
// demandShare the unit's capacity-proportional share of demand (MW).
// The setpoint is clipped to [0, RatedMW] before smoothing; the returned
// output is a convex combination of prevOutput and the clipped setpoint,
// so 0 <= output <= RatedMW holds by induction from an initial output of 0.
func (u Unit) Dispatch(prevOutput float64, freqDev float64, demandShare float64) float64 {
	setpoint := u.Setpoint(freqDev, demandShare)
	return prevOutput + u.config.machine.ResponseRate*(setpoint-prevOutput)
}

// Setpoint is the droop-adjusted power target before inertia smoothing.
// The droop term is applied in MW directly against the MW demand share;
// no rescaling by a system power base is performed.
func (u Unit) Setpoint(freqDev float64, demandShare float64) float64 {
	return clip(demandShare-freqDev/u.config.machine.Droop, 0, u.config.machine.RatedMW)
}

func clip(v float64, lo float64, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
