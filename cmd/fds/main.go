package main

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/ohowland/fds_core/internal/pkg/comm/modbuscomm"
	"github.com/ohowland/fds_core/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/fds_core/internal/pkg/generator"
	"github.com/ohowland/fds_core/internal/pkg/grid"
	"github.com/ohowland/fds_core/internal/pkg/loadprofile"
	"github.com/ohowland/fds_core/internal/pkg/msg"
	"github.com/ohowland/fds_core/internal/pkg/recorder/mongodb"
	"github.com/ohowland/fds_core/internal/pkg/webservice"
)

type simulationConfig struct {
	Seed            int64   `json:"Seed"`
	StabilityBandHz float64 `json:"StabilityBandHz"`
	EnableRecorder  bool    `json:"EnableRecorder"`
	EnableNATS      bool    `json:"EnableNATS"`
	EnableModbus    bool    `json:"EnableModbus"`
}

func main() {
	log.Println("[Main] Starting FDS_Core v0.1.0")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	cfg := loadSimulationConfig("./config/simulation.json")

	log.Println("[Main] Building Generator Units")
	units := buildUnits()

	log.Println("[Main] Building Load Profile")
	load := buildLoadProfile(rand.New(rand.NewSource(cfg.Seed)))

	log.Println("[Main] Building Frequency Grid")
	freqGrid := buildGrid(units, load)

	log.Println("[Main] Linking Consumers")
	handlers := linkConsumers(cfg, freqGrid)

	log.Println("[Main] Running Simulation")
	result := freqGrid.RunSimulation()
	log.Printf("[Main] Run %v complete: %v steps, max excursion %.4f Hz\n",
		result.RunID, len(result.Frequency)-1, result.MaxExcursionHz())
	if !result.WithinBand(cfg.StabilityBandHz) {
		log.Printf("[Main] WARNING: frequency left the %.2f Hz band; Dt is likely too large\n",
			cfg.StabilityBandHz)
	}

	log.Println("[Main] Serving results; SIGINT to stop")
	<-sigs
	log.Println("[Main] Stopping system")
	handlers.stop()
}

func loadSimulationConfig(path string) simulationConfig {
	jsonConfig, err := ioutil.ReadFile(path)
	if err != nil {
		panic(err)
	}
	cfg := simulationConfig{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func buildUnits() []generator.Unit {
	paths := []string{
		"./config/asset/coal.json",
		"./config/asset/gas.json",
		"./config/asset/hydro.json",
	}

	units := make([]generator.Unit, 0, len(paths))
	for _, path := range paths {
		jsonConfig, err := ioutil.ReadFile(path)
		if err != nil {
			panic(err)
		}
		unit, err := generator.New(jsonConfig)
		if err != nil {
			panic(err)
		}
		units = append(units, unit)
	}
	return units
}

func buildLoadProfile(rng *rand.Rand) loadprofile.Profile {
	jsonConfig, err := ioutil.ReadFile("./config/loadprofile.json")
	if err != nil {
		panic(err)
	}
	load, err := loadprofile.New(jsonConfig, rng)
	if err != nil {
		panic(err)
	}
	return load
}

func buildGrid(units []generator.Unit, load loadprofile.Profile) *grid.Grid {
	jsonConfig, err := ioutil.ReadFile("./config/grid.json")
	if err != nil {
		panic(err)
	}
	freqGrid, err := grid.New(jsonConfig, units, load)
	if err != nil {
		panic(err)
	}
	return freqGrid
}

type consumerHandlers struct {
	recorder  *mongodb.Handler
	stream    *natshandler.Handler
	mirrorPID uuid.UUID
	grid      *grid.Grid
}

// stop terminates each linked consumer's process loop.
func (c consumerHandlers) stop() {
	if c.recorder != nil {
		c.recorder.StopProcess()
	}
	if c.stream != nil {
		c.stream.Stop()
	}
	if c.mirrorPID != (uuid.UUID{}) {
		c.grid.Unsubscribe(c.mirrorPID)
	}
}

func linkConsumers(cfg simulationConfig, freqGrid *grid.Grid) consumerHandlers {
	handlers := consumerHandlers{grid: freqGrid}

	if cfg.EnableRecorder {
		recorder, err := mongodb.New("./config/database/mongodb.json", freqGrid)
		if err != nil {
			panic(err)
		}
		go recorder.Process()
		handlers.recorder = &recorder
	}

	if cfg.EnableNATS {
		stream, err := natshandler.New("./config/datastream/nats.json", freqGrid)
		if err != nil {
			panic(err)
		}
		go stream.Process()
		handlers.stream = &stream
	}

	if cfg.EnableModbus {
		jsonConfig, err := ioutil.ReadFile("./config/comm/modbusmirror.json")
		if err != nil {
			panic(err)
		}
		mirror, err := modbuscomm.NewMirror(jsonConfig)
		if err != nil {
			panic(err)
		}
		ch, err := freqGrid.Subscribe(mirror.PID(), msg.Telemetry)
		if err != nil {
			panic(err)
		}
		go mirror.Process(ch)
		handlers.mirrorPID = mirror.PID()
	}

	web, err := webservice.New("./config/webservice.json", freqGrid)
	if err != nil {
		panic(err)
	}
	go web.Process()
	return handlers
}
