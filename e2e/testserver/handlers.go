package testserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// writeJSON responds with the API envelope plus payload fields.
func writeJSON(w http.ResponseWriter, code int, message string, payload map[string]any) {
	body := map[string]any{
		"error":   code >= 400,
		"message": message,
	}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, message, nil)
}

// authenticated resolves the bearer token to a user.
func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, user)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		s.mu.Lock()
		u, ok := s.tokens[token]
		s.mu.Unlock()

		if token == "" || !ok {
			writeError(w, http.StatusUnauthorized, "Missing authentication")
			return
		}
		next(w, r, u)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters long")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		writeError(w, http.StatusBadRequest, "Email is already taken")
		return
	}
	s.addUserLocked(req.Name, req.Email, req.Password)
	writeJSON(w, http.StatusCreated, "User created", nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[req.Email]
	if !ok || u.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token := "token-" + u.id
	s.tokens[token] = u
	writeJSON(w, http.StatusOK, "success", map[string]any{
		"loginResult": map[string]string{
			"userId": u.id,
			"name":   u.name,
			"token":  token,
		},
	})
}

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request, _ user) {
	writeJSON(w, http.StatusOK, "Stories fetched successfully", map[string]any{
		"listStory": s.Stories(),
	})
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request, _ user) {
	id := chi.URLParam(r, "id")
	for _, st := range s.Stories() {
		if st.ID == id {
			writeJSON(w, http.StatusOK, "Story fetched successfully", map[string]any{"story": st})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Story not found")
}

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request, u user) {
	if err := r.ParseMultipartForm(2 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	defer file.Close()
	photo, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	st := Story{
		Name:        u.name,
		Description: r.FormValue("description"),
		Photo:       photo,
	}
	if lat, err := strconv.ParseFloat(r.FormValue("lat"), 64); err == nil {
		st.Lat = &lat
	}
	if lon, err := strconv.ParseFloat(r.FormValue("lon"), 64); err == nil {
		st.Lon = &lon
	}

	s.mu.Lock()
	s.addStoryLocked(st)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, "Story created successfully", nil)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request, _ user) {
	var sub Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	if sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "keys are required")
		return
	}

	s.mu.Lock()
	s.subscriptions[sub.Endpoint] = sub
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, "Success to subscribe web push notification.", map[string]any{"data": sub})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request, _ user) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	s.mu.Lock()
	delete(s.subscriptions, req.Endpoint)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, "Success to unsubscribe web push notification.", nil)
}
