package sessionclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Transport is an http.RoundTripper that attaches the coordinator's access
// token as a bearer header and retries a request exactly once after a
// (possibly coalesced) refresh when the server rejects authentication.
type Transport struct {
	// Base performs the actual requests. Defaults to
	// http.DefaultTransport.
	Base http.RoundTripper

	// Coordinator supplies and refreshes the access token.
	Coordinator *Coordinator
}

// RoundTrip implements http.RoundTripper.
func (transport *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	base := transport.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token := transport.Coordinator.Token()
	response, requestErr := base.RoundTrip(withBearer(request, token))
	if requestErr != nil {
		return nil, requestErr
	}
	if response.StatusCode != http.StatusUnauthorized {
		return response, nil
	}

	// Requests with a one-shot body cannot be replayed.
	if request.Body != nil && request.GetBody == nil {
		return response, nil
	}

	freshToken, refreshErr := transport.Coordinator.EnsureFreshToken(request.Context(), token)
	if refreshErr != nil {
		// The session is gone; hand the original rejection back.
		return response, nil
	}

	_, _ = io.Copy(io.Discard, response.Body)
	_ = response.Body.Close()

	retry := request.Clone(request.Context())
	if request.GetBody != nil {
		body, bodyErr := request.GetBody()
		if bodyErr != nil {
			return nil, fmt.Errorf("sessionclient.transport: replay body: %w", bodyErr)
		}
		retry.Body = body
	}
	return base.RoundTrip(withBearer(retry, freshToken))
}

func withBearer(request *http.Request, token string) *http.Request {
	clone := request.Clone(request.Context())
	if strings.TrimSpace(token) != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	return clone
}

// HTTPRefresher exchanges the refresh cookie held by its client's jar for a
// new access token via the server's refresh endpoint.
type HTTPRefresher struct {
	// Client must carry the refresh cookie, typically via a cookie jar
	// populated at login. Defaults to http.DefaultClient.
	Client *http.Client

	// BaseURL is the API origin, such as https://shop.example.com.
	BaseURL string
}

// Refresh implements Refresher against POST {BaseURL}/api/auth/refresh.
func (refresher *HTTPRefresher) Refresh(ctx context.Context) (string, error) {
	client := refresher.Client
	if client == nil {
		client = http.DefaultClient
	}

	endpoint := strings.TrimRight(refresher.BaseURL, "/") + "/api/auth/refresh"
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if requestErr != nil {
		return "", fmt.Errorf("sessionclient.refresh: %w", requestErr)
	}

	response, doErr := client.Do(request)
	if doErr != nil {
		return "", fmt.Errorf("sessionclient.refresh: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if readErr != nil {
		return "", fmt.Errorf("sessionclient.refresh: %w", readErr)
	}
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sessionclient.refresh: status %d: %w", response.StatusCode, ErrRefreshRejected)
	}

	var decoded struct {
		Status string `json:"status"`
		Data   struct {
			Tokens struct {
				AccessToken string `json:"accessToken"`
			} `json:"tokens"`
		} `json:"data"`
	}
	if decodeErr := json.Unmarshal(body, &decoded); decodeErr != nil {
		return "", fmt.Errorf("sessionclient.refresh: %w", decodeErr)
	}
	if decoded.Status != "success" || decoded.Data.Tokens.AccessToken == "" {
		return "", fmt.Errorf("sessionclient.refresh: incomplete response: %w", ErrRefreshRejected)
	}
	return decoded.Data.Tokens.AccessToken, nil
}
