// Package storeclient talks to the halal-finder server over HTTP.
//
// A Client is both a repository.Store and a session.Provider, so a
// directory.Directory can run unchanged against a remote server. It holds the
// bearer token of the signed-in user; SignIn, SignUp, SignOut and Refresh
// replace it and notify session subscribers.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sakif/halal-finder/internal/apperror"
	"github.com/sakif/halal-finder/internal/model"
	"github.com/sakif/halal-finder/internal/repository"
	"github.com/sakif/halal-finder/internal/session"
)

var (
	_ repository.Store = (*Client)(nil)
	_ session.Provider = (*Client)(nil)
)

// DefaultTimeout bounds each request when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

type Options struct {
	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
	// Token restores a previously issued access token.
	Token string
	// OnTokenChange is called with every new token, and with "" on sign-out.
	OnTokenChange func(token string)
	Logger        *slog.Logger
}

// Client is a repository.Store and session.Provider backed by the HTTP API.
type Client struct {
	session.Broadcaster

	baseURL       string
	http          *http.Client
	onTokenChange func(string)
	logger        *slog.Logger

	mu    sync.Mutex
	token string
}

func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          opts.HTTPClient,
		onTokenChange: opts.OnTokenChange,
		logger:        opts.Logger,
		token:         opts.Token,
	}
}

// Token returns the current access token, or "" when signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	changed := c.token != token
	c.token = token
	c.mu.Unlock()
	if changed && c.onTokenChange != nil {
		c.onTokenChange(token)
	}
}

// StatusError is a non-2xx response. It unwraps to the apperror sentinel for
// the status, so errors.Is(err, apperror.ErrNotFound) works across the wire.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string // server error code, e.g. "validation_error"
	Message    string
	Field      string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("storeclient: %s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return apperror.ErrValidation
	case http.StatusUnauthorized:
		return apperror.ErrNotAuthenticated
	case http.StatusNotFound:
		return apperror.ErrNotFound
	case http.StatusConflict:
		if e.Code == "in_flight" {
			return apperror.ErrInFlight
		}
		return apperror.ErrConflict
	case http.StatusGatewayTimeout:
		return apperror.ErrTimeout
	}
	return nil
}

// errorBody mirrors the server's error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// do sends body (when non-nil) as JSON and decodes a 2xx response into out
// (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("storeclient: encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("storeclient: building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("storeclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("store request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var eb errorBody
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb); err == nil {
			statusErr.Code = eb.Error
			statusErr.Message = eb.Message
			statusErr.Field = eb.Field
		}
		return statusErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("storeclient: decoding %s %s: %w", method, path, err)
	}
	return nil
}

func restaurantPath(id string) string {
	return "/api/restaurants/" + url.PathEscape(id)
}

// === RECORD STORE ===

func (c *Client) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	var list []model.Restaurant
	if err := c.do(ctx, http.MethodGet, "/api/restaurants", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	var r model.Restaurant
	if err := c.do(ctx, http.MethodGet, restaurantPath(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListReviews(ctx context.Context, restaurantID string) ([]model.Review, error) {
	var reviews []model.Review
	if err := c.do(ctx, http.MethodGet, restaurantPath(restaurantID)+"/reviews", nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListReviewsByAuthor lists the signed-in user's reviews. The server derives
// the author from the token, so authorID must be the current user.
func (c *Client) ListReviewsByAuthor(ctx context.Context, _ string) ([]model.Review, error) {
	var reviews []model.Review
	if err := c.do(ctx, http.MethodGet, "/api/me/reviews", nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// InsertRestaurant posts draft. The author is taken from the token.
func (c *Client) InsertRestaurant(ctx context.Context, _ string, draft model.RestaurantDraft) (*model.Restaurant, error) {
	var r model.Restaurant
	if err := c.do(ctx, http.MethodPost, "/api/restaurants", draft, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) InsertReview(ctx context.Context, _ string, restaurantID string, draft model.ReviewDraft) (*model.Review, error) {
	var r model.Review
	if err := c.do(ctx, http.MethodPost, restaurantPath(restaurantID)+"/reviews", draft, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// === FAVORITES ===

func (c *Client) AddFavorite(ctx context.Context, _ string, restaurantID string) error {
	return c.do(ctx, http.MethodPut, "/api/me/favorites/"+url.PathEscape(restaurantID), nil, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, _ string, restaurantID string) error {
	return c.do(ctx, http.MethodDelete, "/api/me/favorites/"+url.PathEscape(restaurantID), nil, nil)
}

func (c *Client) ListFavorites(ctx context.Context, _ string) ([]string, error) {
	var ids []string
	if err := c.do(ctx, http.MethodGet, "/api/me/favorites", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// === SESSION PROVIDER ===

// GetCurrentSession resolves the held token to a user. No token, or one the
// server rejects, is an anonymous session; a rejected token is dropped.
func (c *Client) GetCurrentSession(ctx context.Context) (*model.User, error) {
	if c.Token() == "" {
		return nil, nil
	}
	var user model.User
	err := c.do(ctx, http.MethodGet, "/api/me", nil, &user)
	if errors.Is(err, apperror.ErrNotAuthenticated) {
		c.logger.Info("stored token rejected, continuing signed out")
		c.setToken("")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type authResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*model.User, error) {
	var result authResult
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	if result.Token == "" || result.User == nil {
		return nil, fmt.Errorf("storeclient: POST %s: response carried no session", path)
	}
	c.setToken(result.Token)
	c.Publish(result.User)
	return result.User, nil
}

// SignUp creates an account and signs it in.
func (c *Client) SignUp(ctx context.Context, creds model.Credentials) (*model.User, error) {
	return c.authenticate(ctx, "/auth/signup", creds)
}

func (c *Client) SignIn(ctx context.Context, creds model.Credentials) (*model.User, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

// Refresh trades the current token for a fresh one.
func (c *Client) Refresh(ctx context.Context) (*model.User, error) {
	return c.authenticate(ctx, "/auth/refresh", nil)
}

// SignOut drops the token locally even when the server call fails; the
// token is stateless, so the server has nothing to revoke.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if err != nil {
		c.logger.Warn("logout request failed", slog.String("error", err.Error()))
	}
	c.setToken("")
	c.Publish(nil)
	return err
}
