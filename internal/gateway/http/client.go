package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/storyshare/internal/auth"
	"github.com/artpar/storyshare/internal/gateway"
	"github.com/artpar/storyshare/internal/story"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public story API.
const DefaultBaseURL = "https://story-api.dicoding.dev/v1"

// Client implements gateway.Gateway over the story API's HTTP interface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     gateway.TokenSource
	logger     zerolog.Logger
}

// Option is a function that configures the Client.
type Option func(*Client)

// NewClient creates a new API client with the given options.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: DefaultBaseURL,
		tokens:  gateway.TokenFunc(func(context.Context) string { return "" }),
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// WithBaseURL sets the API root, without a trailing slash.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTransport sets a custom HTTP transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = transport
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(tokens gateway.TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// envelope is the wrapper every API response uses.
type envelope struct {
	Error       bool            `json:"error"`
	Message     string          `json:"message"`
	ListStory   []apiStory      `json:"listStory"`
	Story       *apiStory       `json:"story"`
	LoginResult *auth.Session   `json:"loginResult"`
	Data        json.RawMessage `json:"data"`
}

type apiStory struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PhotoURL    string    `json:"photoUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	Lat         *float64  `json:"lat"`
	Lon         *float64  `json:"lon"`
}

func (s apiStory) record() story.Record {
	return story.Record{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		PhotoURL:    s.PhotoURL,
		CreatedAt:   s.CreatedAt,
		Lat:         s.Lat,
		Lon:         s.Lon,
	}
}

// ListStories fetches the story list.
func (c *Client) ListStories(ctx context.Context) ([]story.Record, error) {
	env, err := c.do(ctx, http.MethodGet, "/stories", nil, "", true)
	if err != nil {
		return nil, err
	}

	records := make([]story.Record, 0, len(env.ListStory))
	for _, s := range env.ListStory {
		records = append(records, s.record())
	}
	return records, nil
}

// GetStory fetches a single story.
func (c *Client) GetStory(ctx context.Context, id string) (story.Record, error) {
	env, err := c.do(ctx, http.MethodGet, "/stories/"+url.PathEscape(id), nil, "", true)
	if err != nil {
		return story.Record{}, err
	}
	if env.Story == nil {
		return story.Record{}, &gateway.APIError{StatusCode: http.StatusOK, Message: "empty story payload"}
	}
	return env.Story.record(), nil
}

// CreateStory submits a story as multipart form data.
func (c *Client) CreateStory(ctx context.Context, s gateway.NewStory) (*story.Record, error) {
	body, contentType, err := encodeStory(s)
	if err != nil {
		return nil, err
	}

	env, err := c.do(ctx, http.MethodPost, "/stories", body, contentType, true)
	if err != nil {
		return nil, err
	}
	if env.Story == nil {
		return nil, nil
	}
	record := env.Story.record()
	return &record, nil
}

// RegisterPushSubscription registers a push endpoint with the API.
func (c *Client) RegisterPushSubscription(ctx context.Context, endpoint string, keys gateway.PushKeys) error {
	payload, err := json.Marshal(map[string]any{
		"endpoint": endpoint,
		"keys":     keys,
	})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, "/notifications/subscribe", bytes.NewReader(payload), "application/json", true)
	return err
}

// UnregisterPushSubscription removes a push endpoint from the API.
func (c *Client) UnregisterPushSubscription(ctx context.Context, endpoint string) error {
	payload, err := json.Marshal(map[string]string{"endpoint": endpoint})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, "/notifications/subscribe", bytes.NewReader(payload), "application/json", true)
	return err
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return auth.Session{}, err
	}
	env, err := c.do(ctx, http.MethodPost, "/login", bytes.NewReader(payload), "application/json", false)
	if err != nil {
		return auth.Session{}, err
	}
	if env.LoginResult == nil || env.LoginResult.Token == "" {
		return auth.Session{}, &gateway.APIError{StatusCode: http.StatusOK, Message: "login response has no token"}
	}
	return *env.LoginResult, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	payload, err := json.Marshal(map[string]string{"name": name, "email": email, "password": password})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, "/register", bytes.NewReader(payload), "application/json", false)
	return err
}

// do sends a request and decodes the response envelope.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, authenticated bool) (*envelope, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	if authenticated {
		token := c.tokens.Token(ctx)
		if token == "" {
			return nil, gateway.ErrAuthMissing
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, transportError(ctx, err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", httpResp.StatusCode).
		Dur("elapsed", time.Since(startTime)).
		Msg("story api call")

	var env envelope
	if len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, &env); err != nil && httpResp.StatusCode < 300 {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if httpResp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", gateway.ErrAuthMissing, env.Message)
	}
	if httpResp.StatusCode >= 300 || env.Error {
		return nil, &gateway.APIError{StatusCode: httpResp.StatusCode, Message: env.Message}
	}

	return &env, nil
}

// transportError classifies a failed round trip.
func transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", gateway.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", gateway.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", gateway.ErrNetwork, err)
}

// encodeStory builds the multipart body of a story submission.
func encodeStory(s gateway.NewStory) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("description", s.Description); err != nil {
		return nil, "", err
	}

	name := s.PhotoName
	if name == "" {
		name = "photo.jpg"
	}
	contentType := s.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(s.Photo); err != nil {
		return nil, "", err
	}

	if s.Lat != nil && s.Lon != nil {
		if err := w.WriteField("lat", strconv.FormatFloat(*s.Lat, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
		if err := w.WriteField("lon", strconv.FormatFloat(*s.Lon, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
