/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package crptapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"
)

type recordedRequest struct {
	Method string
	Header http.Header
	Body   []byte
}

type fakeResponse struct {
	StatusCode int
	Body       string
}

// fakeCRPTServer imitates the document creation endpoint.
// Responses are taken from the queue one by one, the last one is repeated.
type fakeCRPTServer struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []recordedRequest
	responses []fakeResponse

	// block, if not nil, holds every request until it's closed.
	block chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	received    atomic.Int32
}

func newFakeCRPTServer(responses ...fakeResponse) *fakeCRPTServer {
	if len(responses) == 0 {
		responses = []fakeResponse{{StatusCode: http.StatusOK, Body: `{"value":"created"}`}}
	}
	s := &fakeCRPTServer{responses: responses}

	router := chi.NewRouter()
	router.Post(CreateDocumentPath, s.handleCreateDocument)
	s.Server = httptest.NewServer(router)
	return s
}

func newBlockingFakeCRPTServer() *fakeCRPTServer {
	s := newFakeCRPTServer()
	s.block = make(chan struct{})
	return s
}

func (s *fakeCRPTServer) handleCreateDocument(rw http.ResponseWriter, r *http.Request) {
	n := s.inFlight.Inc()
	defer s.inFlight.Dec()
	for {
		maxN := s.maxInFlight.Load()
		if n <= maxN || s.maxInFlight.CompareAndSwap(maxN, n) {
			break
		}
	}

	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{Method: r.Method, Header: r.Header.Clone(), Body: body})
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	s.mu.Unlock()
	s.received.Inc()

	if s.block != nil {
		select {
		case <-s.block:
		case <-r.Context().Done():
			return
		}
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(rw, resp.Body)
}

func (s *fakeCRPTServer) unblock() {
	close(s.block)
}

func (s *fakeCRPTServer) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

type roundTripperFunc func(r *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
