// Package testutil provides test doubles for the scraping core.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// StubResponse scripts one response from the stub service.
type StubResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// StubServer is a configurable stand-in for the metadata service. It counts
// every request it receives so tests can assert on transport call volume.
type StubServer struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string][]StubResponse
	fallback  StubResponse
	requests  int
	perPath   map[string]int
}

// NewStubServer creates a stub service returning 200/empty-object by default.
func NewStubServer() *StubServer {
	s := &StubServer{
		responses: make(map[string][]StubResponse),
		perPath:   make(map[string]int),
		fallback: StubResponse{
			StatusCode: http.StatusOK,
			Body:       `{"header":{},"response":{"success":"true","error":""}}`,
		},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *StubServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	s.perPath[r.URL.Path]++

	resp := s.fallback
	if queue := s.responses[r.URL.Path]; len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			s.responses[r.URL.Path] = queue[1:]
		}
	}
	s.mu.Unlock()

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write([]byte(resp.Body))
}

// Script queues responses for a path. The last response repeats once the
// queue drains.
func (s *StubServer) Script(path string, responses ...StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = responses
}

// SetFallback replaces the default response for unscripted paths.
func (s *StubServer) SetFallback(resp StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = resp
}

// RequestCount returns the total number of requests received.
func (s *StubServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// RequestsFor returns the number of requests received for one path.
func (s *StubServer) RequestsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perPath[path]
}

// URL returns the stub's base URL.
func (s *StubServer) URL() string {
	return s.server.URL
}

// Close shuts the stub down.
func (s *StubServer) Close() {
	s.server.Close()
}
