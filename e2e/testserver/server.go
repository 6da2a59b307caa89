// Package testserver provides an in-memory story API for E2E tests.
package testserver

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BasePath is where the API is mounted, like the public API's /v1.
const BasePath = "/v1"

// Story is a story as the API serves it.
type Story struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PhotoURL    string    `json:"photoUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	Lat         *float64  `json:"lat"`
	Lon         *float64  `json:"lon"`

	// Photo holds the uploaded bytes; it is not served.
	Photo []byte `json:"-"`
}

// Subscription is a registered push endpoint.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type user struct {
	id       string
	name     string
	password string
}

// Server wraps httptest.Server with the API state.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	reachable     bool
	requests      []*RecordedRequest
	users         map[string]user
	tokens        map[string]user
	stories       []Story
	subscriptions map[string]Subscription
	nextID        int
}

// RecordedRequest stores request details for verification.
type RecordedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Time    time.Time
}

// New starts an API server with no users and no stories.
func New() *Server {
	s := &Server{
		reachable:     true,
		users:         make(map[string]user),
		tokens:        make(map[string]user),
		subscriptions: make(map[string]Subscription),
	}

	r := chi.NewRouter()
	r.Use(s.recordingWrapper)
	r.Use(middleware.Recoverer)

	r.Route(BasePath, func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/stories", s.authenticated(s.handleListStories))
		r.Post("/stories", s.authenticated(s.handleCreateStory))
		r.Get("/stories/{id}", s.authenticated(s.handleGetStory))
		r.Post("/notifications/subscribe", s.authenticated(s.handleSubscribe))
		r.Delete("/notifications/subscribe", s.authenticated(s.handleUnsubscribe))
	})

	s.Server = httptest.NewServer(r)
	return s
}

// APIURL returns the API root to configure clients with.
func (s *Server) APIURL() string {
	return s.Server.URL + BasePath
}

// SetReachable simulates losing and regaining connectivity. While
// unreachable every connection is dropped without a response.
func (s *Server) SetReachable(reachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachable = reachable
}

// recordingWrapper records requests and drops them while unreachable.
func (s *Server) recordingWrapper(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		reachable := s.reachable
		if reachable {
			s.requests = append(s.requests, &RecordedRequest{
				Method:  r.Method,
				Path:    r.URL.Path,
				Headers: r.Header.Clone(),
				Time:    time.Now(),
			})
		}
		s.mu.Unlock()

		if !reachable {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// AddUser creates an account.
func (s *Server) AddUser(name, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addUserLocked(name, email, password)
}

func (s *Server) addUserLocked(name, email, password string) {
	s.nextID++
	s.users[email] = user{id: "user-" + strconv.Itoa(s.nextID), name: name, password: password}
}

// AddStory publishes a story and returns its ID.
func (s *Server) AddStory(name, description string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addStoryLocked(Story{Name: name, Description: description})
}

func (s *Server) addStoryLocked(st Story) string {
	s.nextID++
	st.ID = "story-" + strconv.Itoa(s.nextID)
	st.PhotoURL = s.Server.URL + "/images/" + st.ID + ".jpg"
	st.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.nextID) * time.Hour)
	// newest first, like the public API
	s.stories = append([]Story{st}, s.stories...)
	return st.ID
}

// Stories returns the published stories, newest first.
func (s *Server) Stories() []Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Story(nil), s.stories...)
}

// Subscriptions returns the registered push endpoints.
func (s *Server) Subscriptions() []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, sub)
	}
	return subs
}

// Requests returns all recorded requests.
func (s *Server) Requests() []*RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*RecordedRequest, len(s.requests))
	copy(result, s.requests)
	return result
}

// RequestCount returns the number of requests to path with method.
func (s *Server) RequestCount(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && r.Path == BasePath+path {
			n++
		}
	}
	return n
}
