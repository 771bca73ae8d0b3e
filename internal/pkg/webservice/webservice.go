package webservice

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/ohowland/fds_core/internal/pkg/grid"
	"github.com/ohowland/fds_core/internal/pkg/msg"
)

// Service exposes completed simulation runs over HTTP.
type Service struct {
	mux    *sync.Mutex
	pid    uuid.UUID
	config config
	runs   map[string]grid.Result
	latest string
}

type config struct {
	Addr string `json:"Addr"`
}

// FrequencyResponse is the json body served for a frequency query.
type FrequencyResponse struct {
	RunID     string    `json:"RunID"`
	NominalHz float64   `json:"NominalHz"`
	Dt        float64   `json:"Dt"`
	Frequency []float64 `json:"Frequency"`
}

// New subscribes to the system's result stream and returns a Service.
func New(configPath string, system msg.Publisher) (*Service, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, err
	}

	pid, _ := uuid.NewUUID()

	s := &Service{
		mux:    &sync.Mutex{},
		pid:    pid,
		config: cfg,
		runs:   make(map[string]grid.Result),
	}

	chResult, err := system.Subscribe(pid, msg.Result)
	if err != nil {
		return nil, err
	}
	go s.ingress(chResult)

	return s, nil
}

func (s *Service) ingress(ch <-chan msg.Msg) {
	for m := range ch {
		result, ok := m.Payload().(grid.Result)
		if !ok {
			continue
		}
		s.mux.Lock()
		s.runs[result.RunID.String()] = result
		s.latest = result.RunID.String()
		s.mux.Unlock()
	}
}

// Router builds the service's route table.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", BaseHandler)
	r.HandleFunc("/result", s.LatestResultHandler).Methods("GET")
	r.HandleFunc("/result/{runid}", s.ResultHandler).Methods("GET")
	r.HandleFunc("/frequency", s.FrequencyHandler).Methods("GET")
	return r
}

// Process serves the route table on the configured address.
func (s *Service) Process() {
	log.Println("[Webservice] Process Started")
	if err := http.ListenAndServe(s.config.Addr, s.Router()); err != nil {
		log.Printf("[Webservice] %v\n", err)
	}
}

// BaseHandler reports service liveness.
func BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
}

// LatestResultHandler serves the most recently completed run.
func (s *Service) LatestResultHandler(w http.ResponseWriter, r *http.Request) {
	s.mux.Lock()
	result, ok := s.runs[s.latest]
	s.mux.Unlock()
	serveResult(w, result, ok)
}

// ResultHandler serves the run named by the runid path parameter.
func (s *Service) ResultHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := uuid.Parse(vars["runid"]); err != nil {
		log.Println("malformed UUID:", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mux.Lock()
	result, ok := s.runs[vars["runid"]]
	s.mux.Unlock()
	serveResult(w, result, ok)
}

// FrequencyHandler serves the latest run's frequency trajectory.
func (s *Service) FrequencyHandler(w http.ResponseWriter, r *http.Request) {
	s.mux.Lock()
	result, ok := s.runs[s.latest]
	s.mux.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	resp := FrequencyResponse{
		RunID:     result.RunID.String(),
		NominalHz: result.NominalHz,
		Dt:        result.Dt,
		Frequency: result.Frequency,
	}
	body, err := json.Marshal(resp)
	if err != nil {
		log.Println("malformed JSON:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func serveResult(w http.ResponseWriter, result grid.Result, ok bool) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		log.Println("malformed JSON:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
