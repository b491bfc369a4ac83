package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultAPIBase = "https://api.stripe.com"

// signatureTolerance bounds how stale a webhook timestamp may be.
const signatureTolerance = 5 * time.Minute

// StripeProvider is an HTTP client for a Stripe-compatible payments API.
type StripeProvider struct {
	apiBase       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
	logger        *zap.Logger
	now           func() time.Time
}

// StripeConfig configures the provider client.
type StripeConfig struct {
	APIBase       string
	SecretKey     string
	WebhookSecret string
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// NewStripeProvider constructs the provider client.
func NewStripeProvider(configuration StripeConfig) *StripeProvider {
	apiBase := strings.TrimRight(configuration.APIBase, "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeProvider{
		apiBase:       apiBase,
		secretKey:     configuration.SecretKey,
		webhookSecret: configuration.WebhookSecret,
		httpClient:    httpClient,
		logger:        logger,
		now:           time.Now,
	}
}

var _ Provider = (*StripeProvider)(nil)

// CreateIntent posts a form-encoded payment-intent request.
func (provider *StripeProvider) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, provider.apiBase+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if requestErr != nil {
		return nil, fmt.Errorf("payments.stripe.create_intent: %w", requestErr)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Authorization", "Bearer "+provider.secretKey)

	response, doErr := provider.httpClient.Do(request)
	if doErr != nil {
		return nil, fmt.Errorf("payments.stripe.create_intent: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if readErr != nil {
		return nil, fmt.Errorf("payments.stripe.create_intent: %w", readErr)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		provider.logger.Warn("payment intent rejected",
			zap.String("code", "payments.stripe.intent_rejected"),
			zap.Int("status", response.StatusCode))
		return nil, fmt.Errorf("payments.stripe.create_intent: status %d: %w", response.StatusCode, ErrIntentFailed)
	}

	var decoded struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
		Amount       int64  `json:"amount"`
		Currency     string `json:"currency"`
	}
	if decodeErr := json.Unmarshal(body, &decoded); decodeErr != nil {
		return nil, fmt.Errorf("payments.stripe.create_intent: %w", decodeErr)
	}
	if decoded.ID == "" || decoded.ClientSecret == "" {
		return nil, fmt.Errorf("payments.stripe.create_intent: incomplete response: %w", ErrIntentFailed)
	}
	return &Intent{
		ID:           decoded.ID,
		ClientSecret: decoded.ClientSecret,
		AmountCents:  decoded.Amount,
		Currency:     strings.ToUpper(decoded.Currency),
	}, nil
}

// VerifyWebhook checks the t=...,v1=... signature header and decodes the
// event payload.
func (provider *StripeProvider) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	timestamp, signatures, parseErr := parseSignatureHeader(signatureHeader)
	if parseErr != nil {
		return nil, parseErr
	}

	age := provider.now().Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return nil, fmt.Errorf("payments.stripe.verify: stale timestamp: %w", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(provider.webhookSecret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	matched := false
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("payments.stripe.verify: %w", ErrInvalidSignature)
	}

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID       string            `json:"id"`
				Metadata map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if decodeErr := json.Unmarshal(payload, &decoded); decodeErr != nil {
		return nil, fmt.Errorf("payments.stripe.verify: %w", decodeErr)
	}
	return &Event{
		Type:            decoded.Type,
		PaymentIntentID: decoded.Data.Object.ID,
		OrderID:         decoded.Data.Object.Metadata["orderId"],
		UserID:          decoded.Data.Object.Metadata["userId"],
	}, nil
}

// SignWebhookPayload produces a valid signature header for the payload. Test
// servers and fixtures use it to emulate the provider.
func SignWebhookPayload(payload []byte, webhookSecret string, at time.Time) string {
	timestamp := at.Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, fmt.Errorf("payments.stripe.verify: empty header: %w", ErrInvalidSignature)
	}
	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, parseErr := strconv.ParseInt(value, 10, 64)
			if parseErr != nil {
				return 0, nil, fmt.Errorf("payments.stripe.verify: bad timestamp: %w", ErrInvalidSignature)
			}
			timestamp = parsed
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("payments.stripe.verify: incomplete header: %w", ErrInvalidSignature)
	}
	return timestamp, signatures, nil
}
