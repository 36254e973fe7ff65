package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/halal-finder/internal/auth"
	"github.com/sakif/halal-finder/internal/discovery"
	"github.com/sakif/halal-finder/internal/model"
	sqliteRepo "github.com/sakif/halal-finder/internal/repository/sqlite"
	"github.com/sakif/halal-finder/internal/service"
)

const testSecret = "server-test-secret-0123456789"

func newTestServer(t *testing.T, github *auth.GitHubProvider) *httptest.Server {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	srv, err := New(
		Config{DBPath: ":memory:", Seed: true},
		Options{
			Tokens:    tokens,
			GitHub:    github,
			Passwords: auth.NewPasswordServiceForTest(bcrypt.MinCost),
			Registry:  prometheus.NewRegistry(),
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func do(t *testing.T, ts *httptest.Server, method, path, token string, body, out any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func signUp(t *testing.T, ts *httptest.Server, email string) service.AuthResult {
	t.Helper()
	var result service.AuthResult
	resp := do(t, ts, http.MethodPost, "/auth/signup", "",
		model.Credentials{Email: email, Password: "correct horse"}, &result)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, result.Token)
	return result
}

func TestPublicReads(t *testing.T) {
	ts := newTestServer(t, nil)

	var list []model.Restaurant
	resp := do(t, ts, http.MethodGet, "/api/restaurants", "", nil, &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, len(sqliteRepo.SampleRestaurants))

	var vm discovery.ViewModel
	resp = do(t, ts, http.MethodGet, "/api/restaurants?group=cuisine&sort=rating", "", nil, &vm)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, vm.Groups)

	var one model.Restaurant
	resp = do(t, ts, http.MethodGet, "/api/restaurants/"+list[0].ID, "", nil, &one)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, list[0].Name, one.Name)

	resp = do(t, ts, http.MethodGet, "/api/restaurants/missing", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMutationsRequireAuth(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/restaurants", model.RestaurantDraft{Name: "X"}},
		{http.MethodPost, "/api/restaurants/any/reviews", model.ReviewDraft{Rating: 5, Comment: "x"}},
		{http.MethodGet, "/api/me", nil},
		{http.MethodGet, "/api/me/reviews", nil},
		{http.MethodGet, "/api/me/favorites", nil},
		{http.MethodPut, "/api/me/favorites/any", nil},
		{http.MethodPost, "/auth/refresh", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, ts, tt.method, tt.path, "", tt.body, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestSignedInFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := signUp(t, ts, "alice@example.com")

	var created model.Restaurant
	resp := do(t, ts, http.MethodPost, "/api/restaurants", alice.Token,
		model.RestaurantDraft{Name: "Zaytoon", Rating: 4, Cuisine: "Turkish"}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, alice.User.ID, created.CreatedBy)

	var review model.Review
	resp = do(t, ts, http.MethodPost, "/api/restaurants/"+created.ID+"/reviews", alice.Token,
		model.ReviewDraft{Rating: 5, Comment: "Great doner"}, &review)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, review.AuthorID)
	assert.Equal(t, alice.User.ID, *review.AuthorID)

	var reviews []model.Review
	do(t, ts, http.MethodGet, "/api/restaurants/"+created.ID+"/reviews", "", nil, &reviews)
	require.Len(t, reviews, 1)
	assert.Equal(t, review.ID, reviews[0].ID)

	var mine []model.Review
	do(t, ts, http.MethodGet, "/api/me/reviews", alice.Token, nil, &mine)
	assert.Len(t, mine, 1)

	resp = do(t, ts, http.MethodPut, "/api/me/favorites/"+created.ID, alice.Token, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	var favs []string
	do(t, ts, http.MethodGet, "/api/me/favorites", alice.Token, nil, &favs)
	assert.Equal(t, []string{created.ID}, favs)

	resp = do(t, ts, http.MethodDelete, "/api/me/favorites/"+created.ID, alice.Token, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	favs = nil
	do(t, ts, http.MethodGet, "/api/me/favorites", alice.Token, nil, &favs)
	assert.Empty(t, favs)

	var me model.User
	do(t, ts, http.MethodGet, "/api/me", alice.Token, nil, &me)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := signUp(t, ts, "alice@example.com")

	var body struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	resp := do(t, ts, http.MethodPost, "/api/restaurants", alice.Token, model.RestaurantDraft{Rating: 3}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "name", body.Field)

	resp = do(t, ts, http.MethodPost, "/api/restaurants", alice.Token, map[string]any{"name": "X", "bogus": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields are rejected")
}

func TestLoginAndRefresh(t *testing.T) {
	ts := newTestServer(t, nil)
	signUp(t, ts, "bob@example.com")

	resp := do(t, ts, http.MethodPost, "/auth/signup", "",
		model.Credentials{Email: "bob@example.com", Password: "correct horse"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, ts, http.MethodPost, "/auth/login", "",
		model.Credentials{Email: "bob@example.com", Password: "wrong password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var login service.AuthResult
	resp = do(t, ts, http.MethodPost, "/auth/login", "",
		model.Credentials{Email: "BOB@example.com", Password: "correct horse"}, &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, login.Token)

	var hasCookie bool
	for _, c := range resp.Cookies() {
		if c.Name == auth.TokenCookie && c.HttpOnly {
			hasCookie = true
		}
	}
	assert.True(t, hasCookie, "login sets the HttpOnly token cookie")

	var refreshed service.AuthResult
	resp = do(t, ts, http.MethodPost, "/auth/refresh", login.Token, nil, &refreshed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, login.User.ID, refreshed.User.ID)
}

func TestGitHubRoutesOnlyWhenConfigured(t *testing.T) {
	noFollow := func(ts *httptest.Server) *http.Client {
		c := ts.Client()
		c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
		return c
	}

	off := newTestServer(t, nil)
	resp, err := noFollow(off).Get(off.URL + "/auth/github/login")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	on := newTestServer(t, auth.NewGitHubProvider("id", "secret", "http://localhost/cb"))
	resp, err = noFollow(on).Get(on.URL + "/auth/github/login")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "https://github.com/login/oauth/authorize"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	do(t, ts, http.MethodGet, "/api/restaurants", "", nil, nil)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `halal_http_requests_total{method="GET",route="/api/restaurants",status="200"} 1`)
}

func TestNewRequiresTokens(t *testing.T) {
	_, err := New(Config{DBPath: ":memory:"}, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
