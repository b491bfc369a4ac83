package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func newFakeTokenEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/token" {
			http.NotFound(writer, request)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"access_token":"provider-access","token_type":"Bearer","expires_in":3600,"id_token":"` + testGoogleIDToken + `"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func startOAuthFlow(t *testing.T, environment *testEnvironment) string {
	t.Helper()
	recorder := environment.do(httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	if recorder.Code != http.StatusFound {
		t.Fatalf("expected 302 starting oauth, got %d", recorder.Code)
	}
	location, parseErr := url.Parse(recorder.Header().Get("Location"))
	if parseErr != nil {
		t.Fatalf("unexpected redirect parse error: %v", parseErr)
	}
	state := location.Query().Get("state")
	if state == "" {
		t.Fatalf("expected state in authorization redirect %q", location.String())
	}
	return state
}

func TestOAuthCallbackOpensSessionAndRedirects(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)
	tokenEndpoint := newFakeTokenEndpoint(t)
	environment.oauth.SetEndpoint(oauth2.Endpoint{
		AuthURL:  tokenEndpoint.URL + "/auth",
		TokenURL: tokenEndpoint.URL + "/token",
	})

	state := startOAuthFlow(t, environment)

	callback := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+url.QueryEscape(state)+"&code=auth-code", nil)
	recorder := environment.do(callback)
	if recorder.Code != http.StatusFound {
		t.Fatalf("expected 302 from callback, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	location := recorder.Header().Get("Location")
	if !strings.HasPrefix(location, testClientOrigin+"/auth/callback?token=") {
		t.Fatalf("unexpected callback redirect %q", location)
	}
	cookie := refreshCookieFrom(t, recorder)
	if cookie.Value == "" {
		t.Fatalf("expected refresh cookie on federated login")
	}

	// The access token in the redirect is usable against the API.
	parsed, parseErr := url.Parse(location)
	if parseErr != nil {
		t.Fatalf("unexpected redirect parse error: %v", parseErr)
	}
	meRequest := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	meRequest.Header.Set("Authorization", "Bearer "+parsed.Query().Get("token"))
	if meRecorder := environment.do(meRequest); meRecorder.Code != http.StatusOK {
		t.Fatalf("expected 200 using federated access token, got %d", meRecorder.Code)
	}
}

func TestOAuthStateIsSingleUse(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)
	tokenEndpoint := newFakeTokenEndpoint(t)
	environment.oauth.SetEndpoint(oauth2.Endpoint{
		AuthURL:  tokenEndpoint.URL + "/auth",
		TokenURL: tokenEndpoint.URL + "/token",
	})

	state := startOAuthFlow(t, environment)
	first := environment.do(httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+url.QueryEscape(state)+"&code=auth-code", nil))
	if first.Code != http.StatusFound {
		t.Fatalf("expected 302 from first callback, got %d", first.Code)
	}

	replay := environment.do(httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+url.QueryEscape(state)+"&code=auth-code", nil))
	if location := replay.Header().Get("Location"); location != testClientOrigin+"/login?error=oauth_failed" {
		t.Fatalf("expected failure redirect on replayed state, got %q", location)
	}
}

func TestOAuthCallbackRejectsForgedState(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)

	recorder := environment.do(httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=forged&code=auth-code", nil))
	if location := recorder.Header().Get("Location"); location != testClientOrigin+"/login?error=oauth_failed" {
		t.Fatalf("expected failure redirect for forged state, got %q", location)
	}
}

func TestOAuthCallbackPropagatesProviderError(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)

	recorder := environment.do(httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?error=access_denied", nil))
	if location := recorder.Header().Get("Location"); location != testClientOrigin+"/login?error=oauth_failed" {
		t.Fatalf("expected failure redirect on provider error, got %q", location)
	}
}
