// Package unispheretest provides an in-memory Unisphere REST endpoint for tests.
package unispheretest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Default credentials accepted by the fake endpoint
const (
	User     = "smc"
	Password = "smc-secret"
)

const basePath = "/univmax/restapi"

// idFields names the create payload field holding the new resource id.
var idFields = map[string]string{
	"host":         "hostId",
	"storagegroup": "storageGroupId",
}

type failure struct {
	status int
	body   string
}

// Server fakes the sloprovisioning endpoints for hosts and storage groups.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	probeStatus int
	deleteLag   int
	resources   map[string]map[string]int // collection -> id -> remaining "still there" polls, -1 = live
	calls       map[string]int            // "METHOD collection" -> count
	payloads    map[string][]map[string]any
	failures    map[string]failure
}

// NewServer starts a fake endpoint that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		probeStatus: http.StatusInternalServerError,
		resources:   make(map[string]map[string]int),
		calls:       make(map[string]int),
		payloads:    make(map[string][]map[string]any),
		failures:    make(map[string]failure),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// SetProbeStatus changes what the bare base path answers.
func (s *Server) SetProbeStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeStatus = status
}

// SetDeleteLag makes a deleted resource answer 200 for n more GETs before 404.
func (s *Server) SetDeleteLag(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLag = n
}

// Seed marks a resource as existing.
func (s *Server) Seed(collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucket(collection)[id] = -1
}

// Exists reports whether a resource is live (not even pending removal).
func (s *Server) Exists(collection, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lag, ok := s.resources[collection][id]
	return ok && lag < 0
}

// Fail forces every METHOD call on a collection to answer status and body.
func (s *Server) Fail(method, collection string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+collection] = failure{status: status, body: body}
}

// Calls counts requests for METHOD on a collection. Use "probe" for the base path.
func (s *Server) Calls(method, collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+collection]
}

// TotalCalls counts every request received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Payloads returns the decoded create bodies posted to a collection.
func (s *Server) Payloads(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.payloads[collection]...)
}

func (s *Server) bucket(collection string) map[string]int {
	b, ok := s.resources[collection]
	if !ok {
		b = make(map[string]int)
		s.resources[collection] = b
	}
	return b
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, basePath), "/")
	if rest == "" {
		s.calls[r.Method+" probe"]++
		if user, pass, ok := r.BasicAuth(); !ok || user != User || pass != Password {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
			return
		}
		w.WriteHeader(s.probeStatus)
		return
	}

	// sloprovisioning/symmetrix/{symmId}/{collection}[/{id}]
	parts := strings.Split(rest, "/")
	if len(parts) < 4 || parts[0] != "sloprovisioning" || parts[1] != "symmetrix" {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "no such path"})
		return
	}
	collection := parts[3]
	id := ""
	if len(parts) > 4 {
		id = parts[4]
	}
	s.calls[r.Method+" "+collection]++

	if f, ok := s.failures[r.Method+" "+collection]; ok {
		w.WriteHeader(f.status)
		w.Write([]byte(f.body))
		return
	}

	bucket := s.bucket(collection)
	switch r.Method {
	case http.MethodGet:
		lag, ok := bucket[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": fmt.Sprintf("Cannot find %s %s", collection, id)})
			return
		}
		if lag == 0 {
			delete(bucket, id)
			writeJSON(w, http.StatusNotFound, map[string]any{"message": fmt.Sprintf("Cannot find %s %s", collection, id)})
			return
		}
		if lag > 0 {
			bucket[id] = lag - 1
		}
		writeJSON(w, http.StatusOK, map[string]any{idFields[collection]: id})

	case http.MethodPost:
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
			return
		}
		s.payloads[collection] = append(s.payloads[collection], payload)
		newID, _ := payload[idFields[collection]].(string)
		if _, ok := bucket[newID]; ok {
			writeJSON(w, http.StatusConflict, map[string]any{"message": fmt.Sprintf("%s %s already exists", collection, newID)})
			return
		}
		bucket[newID] = -1
		writeJSON(w, http.StatusOK, payload)

	case http.MethodDelete:
		if _, ok := bucket[id]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": fmt.Sprintf("Cannot find %s %s", collection, id)})
			return
		}
		if s.deleteLag > 0 {
			bucket[id] = s.deleteLag
		} else {
			delete(bucket, id)
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
