package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
)

// Client implements Gateway over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore

	mu        sync.Mutex
	listeners map[int]func(AuthEvent)
	nextID    int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a gateway for the backend at baseURL.
func NewClient(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = &MemoryTokens{}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     tokens,
		listeners:  make(map[int]func(AuthEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Gateway = (*Client)(nil)

type errorBody struct {
	Error string `json:"error"`
}

// do performs one request. in is encoded as the JSON body when non-nil and
// out receives the decoded response when non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errs.Gateway(op, 0, "", fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errs.Gateway(op, 0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Load()
	if err != nil {
		log.Printf("gateway: could not load session token: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Gateway(op, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(raw, &eb) != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(raw))
		}
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			c.dropSession()
		}
		return errs.Gateway(op, resp.StatusCode, eb.Error, nil)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Gateway(op, resp.StatusCode, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// dropSession forgets a token the backend no longer accepts.
func (c *Client) dropSession() {
	if err := c.tokens.Clear(); err != nil {
		log.Printf("gateway: could not clear session token: %v", err)
	}
	c.emit(AuthEvent{Kind: SignedOut, Identity: model.Anonymous()})
}

func ownerQuery(ownerID *string) url.Values {
	if ownerID == nil {
		return nil
	}
	return url.Values{"owner_id": {*ownerID}}
}

func (c *Client) CreateDetectionRecord(ctx context.Context, in model.DetectionInput) (model.DetectionRecord, error) {
	var out model.DetectionRecord
	err := c.do(ctx, "create_detection_record", http.MethodPost, "/rest/detection_records", nil, in, &out)
	return out, err
}

func (c *Client) ListDetectionRecords(ctx context.Context, ownerID *string) ([]model.DetectionRecord, error) {
	var out []model.DetectionRecord
	err := c.do(ctx, "list_detection_records", http.MethodGet, "/rest/detection_records", ownerQuery(ownerID), nil, &out)
	return out, err
}

func (c *Client) DeleteDetectionRecord(ctx context.Context, id string) error {
	return c.do(ctx, "delete_detection_record", http.MethodDelete, "/rest/detection_records/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) CreateMonitorSession(ctx context.Context, in model.SessionInput) (model.MonitorSession, error) {
	var out model.MonitorSession
	err := c.do(ctx, "create_monitor_session", http.MethodPost, "/rest/monitor_sessions", nil, in, &out)
	return out, err
}

func (c *Client) UpdateMonitorSession(ctx context.Context, id string, patch model.SessionPatch) (model.MonitorSession, error) {
	var out model.MonitorSession
	err := c.do(ctx, "update_monitor_session", http.MethodPatch, "/rest/monitor_sessions/"+url.PathEscape(id), nil, patch, &out)
	return out, err
}

func (c *Client) ListMonitorSessions(ctx context.Context, ownerID *string) ([]model.MonitorSession, error) {
	var out []model.MonitorSession
	err := c.do(ctx, "list_monitor_sessions", http.MethodGet, "/rest/monitor_sessions", ownerQuery(ownerID), nil, &out)
	return out, err
}

func (c *Client) CreateMonitorSnapshot(ctx context.Context, in model.SnapshotInput) (model.MonitorSnapshot, error) {
	var out model.MonitorSnapshot
	err := c.do(ctx, "create_monitor_snapshot", http.MethodPost, "/rest/monitor_snapshots", nil, in, &out)
	return out, err
}

func (c *Client) ListMonitorSnapshots(ctx context.Context, sessionID string) ([]model.MonitorSnapshot, error) {
	var out []model.MonitorSnapshot
	path := "/rest/monitor_sessions/" + url.PathEscape(sessionID) + "/snapshots"
	err := c.do(ctx, "list_monitor_snapshots", http.MethodGet, path, nil, nil, &out)
	return out, err
}

func (c *Client) GetUserProfile(ctx context.Context, id string) (model.UserProfile, error) {
	var out model.UserProfile
	err := c.do(ctx, "get_user_profile", http.MethodGet, "/rest/user_profiles/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) UpdateUserProfile(ctx context.Context, id string, patch model.ProfilePatch) (model.UserProfile, error) {
	var out model.UserProfile
	err := c.do(ctx, "update_user_profile", http.MethodPatch, "/rest/user_profiles/"+url.PathEscape(id), nil, patch, &out)
	return out, err
}

type sessionResponse struct {
	AccessToken string            `json:"access_token"`
	ExpiresAt   time.Time         `json:"expires_at"`
	User        model.UserProfile `json:"user"`
}

func (c *Client) SignUp(ctx context.Context, email, password string, name *string) (model.Identity, error) {
	body := map[string]any{"email": email, "password": password}
	if name != nil {
		body["name"] = *name
	}
	return c.startSession(ctx, "sign_up", "/auth/signup", body)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (model.Identity, error) {
	body := map[string]any{"email": email, "password": password}
	return c.startSession(ctx, "sign_in", "/auth/signin", body)
}

func (c *Client) startSession(ctx context.Context, op, path string, body any) (model.Identity, error) {
	var out sessionResponse
	if err := c.do(ctx, op, http.MethodPost, path, nil, body, &out); err != nil {
		return model.Identity{}, err
	}
	if err := c.tokens.Save(out.AccessToken); err != nil {
		return model.Identity{}, errs.Gateway(op, 0, "", fmt.Errorf("store session: %w", err))
	}
	identity := IdentityFromProfile(out.User)
	c.emit(AuthEvent{Kind: SignedIn, Identity: identity})
	return identity, nil
}

// SignOut ends the remote session. The local token is dropped even when the
// backend cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	token, _ := c.tokens.Load()
	var err error
	if token != "" {
		err = c.do(ctx, "sign_out", http.MethodPost, "/auth/signout", nil, nil, nil)
	}
	if clearErr := c.tokens.Clear(); clearErr != nil && err == nil {
		err = errs.Gateway("sign_out", 0, "", clearErr)
	}
	if token != "" {
		c.emit(AuthEvent{Kind: SignedOut, Identity: model.Anonymous()})
	}
	return err
}

func (c *Client) CurrentIdentity(ctx context.Context) (*model.Identity, error) {
	token, err := c.tokens.Load()
	if err != nil {
		return nil, errs.Gateway("current_identity", 0, "", err)
	}
	if token == "" {
		return nil, nil
	}

	var profile model.UserProfile
	err = c.do(ctx, "current_identity", http.MethodGet, "/auth/user", nil, nil, &profile)
	if errs.GatewayStatus(err) == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	identity := IdentityFromProfile(profile)
	return &identity, nil
}

func (c *Client) Subscribe(fn func(AuthEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Client) emit(ev AuthEvent) {
	c.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
