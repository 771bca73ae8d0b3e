package mongodb

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/fds_core/internal/pkg/grid"
	"github.com/ohowland/fds_core/internal/pkg/msg"
	"go.mongodb.org/mongo-driver/bson"
	"gotest.tools/v3/assert"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "mongodb")
	assert.NilError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "mongodb.json")
	jsonConfig := []byte(`{"URI": "mongodb://localhost", "Database": "fds", "Port": "27017"}`)
	assert.NilError(t, ioutil.WriteFile(path, jsonConfig, 0644))
	return path
}

func TestNewSubscribesToResult(t *testing.T) {
	pidPub, err := uuid.NewUUID()
	assert.NilError(t, err)
	pubsub := msg.NewPublisher(pidPub)

	h, err := New(writeTestConfig(t), pubsub)
	assert.NilError(t, err)
	assert.Equal(t, h.config.URI, "mongodb://localhost")
	assert.Equal(t, h.config.Database, "fds")

	// the handler holds the result subscription; resubscribing with its
	// pid must be rejected by the publisher
	_, err = pubsub.Subscribe(h.pid, msg.Result)
	assert.Assert(t, err != nil)
}

func TestStopProcessReturnsWithoutProcessLoop(t *testing.T) {
	pidPub, err := uuid.NewUUID()
	assert.NilError(t, err)
	pubsub := msg.NewPublisher(pidPub)

	h, err := New(writeTestConfig(t), pubsub)
	assert.NilError(t, err)

	// shutdown must not hang when the process loop never started or has
	// already exited on a connect failure
	done := make(chan bool)
	go func() {
		h.StopProcess()
		done <- true
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StopProcess blocked with no process loop running")
	}
}

func TestNewRejectsMissingConfig(t *testing.T) {
	pidPub, _ := uuid.NewUUID()
	pubsub := msg.NewPublisher(pidPub)

	_, err := New("does_not_exist.json", pubsub)
	assert.Assert(t, err != nil)
}

func TestResultToBSON(t *testing.T) {
	runID, err := uuid.NewUUID()
	assert.NilError(t, err)
	result := grid.Result{
		RunID:     runID,
		NominalHz: 50,
		Dt:        0.1,
		Frequency: []float64{50, 49.99},
		Dispatch:  []grid.Trace{{Name: "Coal", OutputMW: []float64{12.5}}},
	}

	doc := resultToBSON(result)
	assert.Equal(t, doc[0].Key, "$set")

	set := doc[0].Value.(bson.M)
	assert.Equal(t, set["runid"], runID.String())
	assert.Equal(t, set["nominalhz"], 50.0)
	assert.Equal(t, set["dt"], 0.1)

	traces := set["dispatch"].(bson.M)
	outputs := traces["Coal"].([]float64)
	assert.Equal(t, outputs[0], 12.5)
}
