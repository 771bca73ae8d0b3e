package mongodb

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"log"

	"github.com/google/uuid"
	"github.com/ohowland/fds_core/internal/pkg/grid"
	"github.com/ohowland/fds_core/internal/pkg/msg"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Handler persists completed simulation runs to MongoDB.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config config
	stop   chan bool
}

type config struct {
	URI      string `json:"URI"`
	Database string `json:"Database"`
	Port     string `json:"Port"`
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New subscribes to the system's result stream and returns a Handler.
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

	chResult, err := system.Subscribe(pid, msg.Result)
	if err != nil {
		return Handler{}, err
	}
	go redirectMsg(chResult, inbox)

	// buffered so StopProcess returns even after Process has exited
	stop := make(chan bool, 1)

	return Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   stop,
	}, nil
}

func resultToBSON(r grid.Result) bson.D {
	traces := bson.M{}
	for _, trace := range r.Dispatch {
		traces[trace.Name] = trace.OutputMW
	}
	return bson.D{
		{Key: "$set", Value: bson.M{
			"runid":     r.RunID.String(),
			"nominalhz": r.NominalHz,
			"dt":        r.Dt,
			"frequency": r.Frequency,
			"dispatch":  traces,
		}},
	}
}

// StopProcess terminates the handler's process loop.
func (h *Handler) StopProcess() {
	h.stop <- true
}

// Process upserts one document per completed run until stopped.
func (h Handler) Process() {
	client, err := mongo.NewClient(options.Client().ApplyURI(h.config.URI + ":" + h.config.Port))
	if err != nil {
		log.Println(err)
		return
	}

	ctx := context.TODO()
	err = client.Connect(ctx)
	if err != nil {
		log.Println(err)
		return
	}
	defer client.Disconnect(ctx)

	runs := client.Database(h.config.Database).Collection("simulationRuns")
loop:
	for {
		select {
		case m := <-h.inbox:
			result, ok := m.Payload().(grid.Result)
			if !ok {
				continue
			}
			opts := options.Update().SetUpsert(true)
			_, err = runs.UpdateOne(
				ctx,
				bson.M{"runid": result.RunID.String()},
				resultToBSON(result),
				opts,
			)
			if err != nil {
				log.Printf("[MongoDB Recorder] %v write error\n", err)
			}
		case <-h.stop:
			break loop
		}
	}
	log.Println("[MongoDB Recorder] Process Stopped")
}
