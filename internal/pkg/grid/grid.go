/*
grid.go Representation of a single aggregate frequency bus. A population of
generator units tracks a demand profile while the bus frequency evolves
under the swing equation.
*/

package grid

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/ohowland/fds_core/internal/pkg/generator"
	"github.com/ohowland/fds_core/internal/pkg/loadprofile"
	"github.com/ohowland/fds_core/internal/pkg/msg"
)

// ErrInvalidConfig is returned when a grid is assembled from parameters
// that would make the simulation undefined. All validation runs at
// construction; RunSimulation cannot fail mid-run.
var ErrInvalidConfig = errors.New("grid: invalid configuration")

// Config represents the static properties of the frequency bus.
type Config struct {
	Name        string  `json:"Name"`
	NominalHz   float64 `json:"NominalHz"`
	Dt          float64 `json:"Dt"`
	DampingMWHz float64 `json:"DampingMWHz"`
}

// Grid couples generator units to a load profile on one aggregate bus.
type Grid struct {
	pid           uuid.UUID
	publisher     *msg.PubSub
	units         []generator.Unit
	load          loadprofile.Profile
	config        Config
	totalCapacity float64
	totalInertia  float64
}

// Step is the telemetry payload published once per simulated step.
type Step struct {
	Index      int
	Hz         float64
	DemandMW   float64
	DispatchMW float64
}

// Trace is one unit's dispatch trajectory, one sample per simulated step.
type Trace struct {
	Name     string    `json:"Name"`
	OutputMW []float64 `json:"OutputMW"`
}

// Result is the complete output of one simulation run. Each run constructs
// a fresh Result; re-running a grid never appends to prior state.
type Result struct {
	RunID     uuid.UUID `json:"RunID"`
	NominalHz float64   `json:"NominalHz"`
	Dt        float64   `json:"Dt"`
	Frequency []float64 `json:"Frequency"`
	Dispatch  []Trace   `json:"Dispatch"`
}

// New configures and returns a Grid. The unit list and load profile must
// be fully initialized; configuration errors surface here, before any
// simulation state exists.
func New(jsonConfig []byte, units []generator.Unit, load loadprofile.Profile) (*Grid, error) {
	config := Config{}
	err := json.Unmarshal(jsonConfig, &config)
	if err != nil {
		return nil, err
	}

	var totalCapacity, totalInertia float64
	for _, u := range units {
		totalCapacity += u.Config().RatedMW()
		totalInertia += u.Config().InertiaSec()
	}

	if err := validate(config, units, load, totalCapacity, totalInertia); err != nil {
		return nil, err
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}

	return &Grid{
		pid:           pid,
		publisher:     msg.NewPublisher(pid),
		units:         units,
		load:          load,
		config:        config,
		totalCapacity: totalCapacity,
		totalInertia:  totalInertia,
	}, nil
}

func validate(config Config, units []generator.Unit, load loadprofile.Profile,
	totalCapacity float64, totalInertia float64) error {
	if config.NominalHz <= 0 {
		return fmt.Errorf("%w: NominalHz must be positive", ErrInvalidConfig)
	}
	if config.Dt <= 0 {
		return fmt.Errorf("%w: Dt must be positive", ErrInvalidConfig)
	}
	if config.DampingMWHz < 0 {
		return fmt.Errorf("%w: DampingMWHz must be nonnegative", ErrInvalidConfig)
	}
	if len(units) == 0 {
		return fmt.Errorf("%w: no generator units", ErrInvalidConfig)
	}
	if load.Dt() != config.Dt {
		return fmt.Errorf("%w: load profile Dt %v does not match grid Dt %v",
			ErrInvalidConfig, load.Dt(), config.Dt)
	}
	names := make(map[string]bool)
	for _, u := range units {
		if names[u.Name()] {
			return fmt.Errorf("%w: duplicate unit name %v", ErrInvalidConfig, u.Name())
		}
		names[u.Name()] = true
	}
	// zero-value units bypass generator.New, so the aggregates are
	// checked here as well
	if totalCapacity <= 0 {
		return fmt.Errorf("%w: total capacity must be positive", ErrInvalidConfig)
	}
	if totalInertia <= 0 {
		return fmt.Errorf("%w: total inertia must be positive", ErrInvalidConfig)
	}
	return nil
}

// PID is an accessor for the grid's process id.
func (g Grid) PID() uuid.UUID {
	return g.pid
}

// Name is an accessor for the grid's configured name.
func (g Grid) Name() string {
	return g.config.Name
}

// NominalHz is an accessor for the bus nominal frequency.
func (g Grid) NominalHz() float64 {
	return g.config.NominalHz
}

// Subscribe returns a read only channel for the grid's telemetry.
func (g *Grid) Subscribe(pid uuid.UUID, topic msg.Topic) (<-chan msg.Msg, error) {
	return g.publisher.Subscribe(pid, topic)
}

// Unsubscribe closes the channels associated with the pid parameter.
func (g *Grid) Unsubscribe(pid uuid.UUID) {
	g.publisher.Unsubscribe(pid)
}

// RunSimulation executes the full demand series once and returns the
// frequency trajectory and per-unit dispatch traces. The loop is a strict
// sequential scan: one transition per demand sample, no early exit. All
// run state is local, so repeated calls produce independent results.
//
// The explicit Euler step is first-order accurate; Dt must be small
// relative to the fastest control time constant or the trajectory can
// diverge numerically. Divergence is reported through the Result's
// excursion accessors, never by aborting the run.
func (g *Grid) RunSimulation() Result {
	runID, _ := uuid.NewUUID()
	demand := g.load.Demand()

	frequency := make([]float64, 0, len(demand)+1)
	frequency = append(frequency, g.config.NominalHz)

	outputs := make([]float64, len(g.units))
	traces := make([]Trace, len(g.units))
	for i, u := range g.units {
		traces[i] = Trace{Name: u.Name(), OutputMW: make([]float64, 0, len(demand))}
	}

	for step, d := range demand {
		fPrev := frequency[len(frequency)-1]
		freqDev := fPrev - g.config.NominalHz

		var genPower float64
		for i, u := range g.units {
			share := d * (u.Config().RatedMW() / g.totalCapacity)
			outputs[i] = u.Dispatch(outputs[i], freqDev, share)
			traces[i].OutputMW = append(traces[i].OutputMW, outputs[i])
			genPower += outputs[i]
		}

		dfdt := (genPower - d - g.config.DampingMWHz*freqDev) /
			(2 * g.totalInertia * g.config.NominalHz)
		fNext := fPrev + dfdt*g.config.Dt
		frequency = append(frequency, fNext)

		g.publisher.Publish(msg.Telemetry, Step{step, fNext, d, genPower})
	}

	result := Result{
		RunID:     runID,
		NominalHz: g.config.NominalHz,
		Dt:        g.config.Dt,
		Frequency: frequency,
		Dispatch:  traces,
	}
	g.publisher.Publish(msg.Result, result)
	return result
}

// MaxExcursionHz returns the largest absolute frequency deviation from
// nominal over the run.
func (r Result) MaxExcursionHz() float64 {
	var max float64
	for _, f := range r.Frequency {
		if dev := math.Abs(f - r.NominalHz); dev > max {
			max = dev
		}
	}
	return max
}

// WithinBand reports whether the frequency trajectory stayed inside the
// band parameter. A false return indicates probable numerical instability
// (Dt too large for the system time constants); the run data is still valid
// for inspection.
func (r Result) WithinBand(band float64) bool {
	return r.MaxExcursionHz() <= band
}
