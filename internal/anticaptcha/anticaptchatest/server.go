// Package anticaptchatest provides an in-process fake of the solving service for tests.
package anticaptchatest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// SamplePNG sniffs as image/png.
var SamplePNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// Behavior configures the fake's answers.
type Behavior struct {
	// Solutions is the answer of the nth created task, the last one repeats.
	Solutions []string
	// Processing is the number of "processing" results a task returns before it is ready.
	Processing int
	NeverReady bool
	// Cost is sent as a string like the real service does.
	Cost       string
	Balance    float64
	CreateErr  *ServiceErr
	ResultErr  *ServiceErr
	BalanceErr *ServiceErr
}

type ServiceErr struct {
	Id          int
	Code        string
	Description string
}

type CreateRequest struct {
	ClientKey string `json:"clientKey"`
	Task      struct {
		Type      string `json:"type"`
		Body      string `json:"body"`
		Phrase    bool   `json:"phrase"`
		Case      bool   `json:"case"`
		Numeric   int    `json:"numeric"`
		Math      bool   `json:"math"`
		MinLength int    `json:"minLength"`
		MaxLength int    `json:"maxLength"`
	} `json:"task"`
}

type taskRequest struct {
	ClientKey string `json:"clientKey"`
	TaskId    int64  `json:"taskId"`
}

type Server struct {
	*httptest.Server
	behavior Behavior

	mu       sync.Mutex
	nextId   int64
	created  []CreateRequest
	checks   map[int64]int
	reported []int64
	requests map[string]int
}

func NewServer(behavior Behavior) *Server {
	s := &Server{
		behavior: behavior,
		nextId:   1000,
		checks:   map[int64]int{},
		requests: map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /createTask", s.createTask)
	mux.HandleFunc("POST /getTaskResult", s.getTaskResult)
	mux.HandleFunc("POST /getBalance", s.getBalance)
	mux.HandleFunc("POST /reportIncorrectImageCaptcha", s.reportIncorrect)
	s.Server = httptest.NewServer(mux)
	return s
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeServiceErr(w http.ResponseWriter, e *ServiceErr) {
	writeJSON(w, map[string]any{
		"errorId":          e.Id,
		"errorCode":        e.Code,
		"errorDescription": e.Description,
	})
}

func (s *Server) count(endpoint string) {
	s.mu.Lock()
	s.requests[endpoint]++
	s.mu.Unlock()
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	s.count("createTask")
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.behavior.CreateErr != nil {
		writeServiceErr(w, s.behavior.CreateErr)
		return
	}

	s.mu.Lock()
	s.nextId++
	id := s.nextId
	s.created = append(s.created, req)
	s.mu.Unlock()

	writeJSON(w, map[string]any{"errorId": 0, "taskId": id})
}

func (s *Server) getTaskResult(w http.ResponseWriter, r *http.Request) {
	s.count("getTaskResult")
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.behavior.ResultErr != nil {
		writeServiceErr(w, s.behavior.ResultErr)
		return
	}

	s.mu.Lock()
	s.checks[req.TaskId]++
	checks := s.checks[req.TaskId]
	index := int(req.TaskId - 1001)
	s.mu.Unlock()

	if s.behavior.NeverReady || checks <= s.behavior.Processing {
		writeJSON(w, map[string]any{"errorId": 0, "status": "processing"})
		return
	}

	solution := ""
	if len(s.behavior.Solutions) > 0 {
		solution = s.behavior.Solutions[min(index, len(s.behavior.Solutions)-1)]
	}
	cost := s.behavior.Cost
	if cost == "" {
		cost = "0.0007"
	}
	writeJSON(w, map[string]any{
		"errorId":    0,
		"status":     "ready",
		"solution":   map[string]any{"text": solution},
		"cost":       cost,
		"createTime": 1700000000,
		"endTime":    1700000007,
		"solveCount": 1,
	})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	s.count("getBalance")
	if s.behavior.BalanceErr != nil {
		writeServiceErr(w, s.behavior.BalanceErr)
		return
	}
	writeJSON(w, map[string]any{"errorId": 0, "balance": s.behavior.Balance})
}

func (s *Server) reportIncorrect(w http.ResponseWriter, r *http.Request) {
	s.count("reportIncorrectImageCaptcha")
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.reported = append(s.reported, req.TaskId)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"errorId": 0, "status": "success"})
}

// Created returns every createTask request received so far.
func (s *Server) Created() []CreateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CreateRequest, len(s.created))
	copy(out, s.created)
	return out
}

// Checks returns the number of getTaskResult requests for taskId.
func (s *Server) Checks(taskId int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks[taskId]
}

// Reported returns the task ids reported as incorrect, in order.
func (s *Server) Reported() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.reported))
	copy(out, s.reported)
	return out
}

func (s *Server) Requests(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[endpoint]
}
