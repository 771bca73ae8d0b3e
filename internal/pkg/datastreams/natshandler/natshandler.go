package natshandler

import (
	"encoding/json"
	"io/ioutil"
	"log"

	"github.com/google/uuid"
	"github.com/ohowland/fds_core/internal/pkg/grid"
	"github.com/ohowland/fds_core/internal/pkg/msg"

	nats "github.com/nats-io/nats.go"
)

// Handler forwards simulation telemetry to a NATS subject.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	Server  string `json:"Server"`
	Subject string `json:"Subject"`
}

func (h Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New subscribes to the system's telemetry stream and returns a Handler.
func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, err
	}

	pid, _ := uuid.NewUUID()

	inbox := make(chan msg.Msg, 50)

	chTelemetry, err := system.Subscribe(pid, msg.Telemetry)
	if err != nil {
		return Handler{}, err
	}
	go redirectMsg(chTelemetry, inbox)

	// buffered so Stop returns even after Process has exited
	stop := make(chan bool, 1)

	return Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   stop,
	}, nil
}

// Stop terminates the handler's process loop.
func (h *Handler) Stop() {
	h.stop <- true
}

// Process publishes each telemetry step to the configured subject until
// stopped. Marshal or publish failures are logged and skipped.
func (h Handler) Process() {
	log.Println("[NATS client] Process Started")
	nc, err := nats.Connect(h.config.Server)
	if err != nil {
		log.Printf("[NATS client] %v connect error\n", err)
		return
	}
	defer nc.Close()

loop:
	for {
		select {
		case m := <-h.inbox:
			step, ok := m.Payload().(grid.Step)
			if !ok {
				continue
			}
			bytes, err := json.Marshal(step)
			if err != nil {
				log.Printf("[NATS client] %v marshal error\n", err)
				continue
			}
			if err := nc.Publish(h.config.Subject, bytes); err != nil {
				log.Printf("[NATS client] %v publish error\n", err)
			}
		case <-h.stop:
			break loop
		}
	}
	log.Println("[NATS client] Process Stopped")
}
