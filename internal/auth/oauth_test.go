package auth

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// mockedContext returns a context whose OAuth HTTP client is intercepted by
// httpmock, plus the transport to register responders on.
func mockedContext(t *testing.T) (context.Context, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := &http.Client{Transport: transport}
	return context.WithValue(context.Background(), oauth2.HTTPClient, client), transport
}

func TestGitHubProvider_AuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost:8080/auth/github/callback")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "http://localhost:8080/auth/github/callback", q.Get("redirect_uri"))
}

func TestGitHubProvider_Exchange(t *testing.T) {
	ctx, transport := mockedContext(t)
	transport.RegisterResponder(http.MethodPost, github.Endpoint.TokenURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"access_token": "gh-token",
			"token_type":   "bearer",
		}))
	transport.RegisterResponder(http.MethodGet, githubUserURL,
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Bearer gh-token" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, ""), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, GitHubUser{
				ID: 42, Login: "octocat", Email: "octo@example.com",
			})
		})

	p := NewGitHubProvider("client-id", "secret", "http://localhost/cb")
	user, err := p.Exchange(ctx, "code-xyz")
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "octocat", user.Login)
}

func TestGitHubProvider_ExchangeRejectsBadProfile(t *testing.T) {
	ctx, transport := mockedContext(t)
	transport.RegisterResponder(http.MethodPost, github.Endpoint.TokenURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"access_token": "gh-token",
			"token_type":   "bearer",
		}))
	transport.RegisterResponder(http.MethodGet, githubUserURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"login": "ghost"}))

	p := NewGitHubProvider("client-id", "secret", "http://localhost/cb")
	_, err := p.Exchange(ctx, "code-xyz")
	assert.Error(t, err, "a profile with ID 0 must be rejected")
}

func TestGitHubProvider_ExchangeUpstreamError(t *testing.T) {
	ctx, transport := mockedContext(t)
	transport.RegisterResponder(http.MethodPost, github.Endpoint.TokenURL,
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))

	p := NewGitHubProvider("client-id", "secret", "http://localhost/cb")
	_, err := p.Exchange(ctx, "code-xyz")
	assert.Error(t, err)
}
