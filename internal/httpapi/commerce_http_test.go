package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mprlab/storefront/internal/authkit"
	"github.com/mprlab/storefront/internal/commerce"
	"github.com/mprlab/storefront/internal/payments"
)

func seedAdmin(t *testing.T, environment *testEnvironment) string {
	t.Helper()
	passwordHash, hashErr := authkit.HashPassword("admin-secret", authkit.MinPasswordHashCost)
	if hashErr != nil {
		t.Fatalf("unexpected hash error: %v", hashErr)
	}
	admin := &authkit.User{
		Email:        "admin@example.com",
		PasswordHash: passwordHash,
		Role:         authkit.RoleAdmin,
		Provider:     authkit.ProviderLocal,
	}
	if createErr := environment.credentials.Create(context.Background(), admin); createErr != nil {
		t.Fatalf("unexpected admin create error: %v", createErr)
	}

	recorder := environment.do(jsonRequest(t, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "admin@example.com",
		"password": "admin-secret",
	}))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 from admin login, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	return decodeSessionData(t, recorder).Tokens.AccessToken
}

func seedProduct(t *testing.T, environment *testEnvironment, name string, priceCents int64, stock int, active bool) *commerce.Product {
	t.Helper()
	product := &commerce.Product{
		Name:       name,
		PriceCents: priceCents,
		Currency:   "USD",
		Stock:      stock,
		Active:     active,
	}
	if createErr := environment.products.Create(context.Background(), product); createErr != nil {
		t.Fatalf("unexpected product create error: %v", createErr)
	}
	return product
}

func bearer(request *http.Request, accessToken string) *http.Request {
	request.Header.Set("Authorization", "Bearer "+accessToken)
	return request
}

func TestCatalogMutationsRequireAdmin(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)

	shopper, _ := registerShopper(t, environment, "shopper@example.com", "sup3r-secret")
	createBody := gin.H{"name": "Mechanical Keyboard", "priceCents": 12900, "stock": 4}

	forbidden := environment.do(bearer(jsonRequest(t, http.MethodPost, "/api/admin/products", createBody), shopper.Tokens.AccessToken))
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for shopper mutation, got %d", forbidden.Code)
	}
	if message := decodeEnvelope(t, forbidden).Message; message != "Insufficient privileges" {
		t.Fatalf("unexpected forbidden message %q", message)
	}

	adminToken := seedAdmin(t, environment)
	created := environment.do(bearer(jsonRequest(t, http.MethodPost, "/api/admin/products", createBody), adminToken))
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201 from admin create, got %d (%s)", created.Code, created.Body.String())
	}

	duplicate := environment.do(bearer(jsonRequest(t, http.MethodPost, "/api/admin/products", createBody), adminToken))
	if duplicate.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", duplicate.Code)
	}
}

func TestProductListHidesInactiveFromShoppers(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)

	seedProduct(t, environment, "Visible Widget", 1000, 5, true)
	seedProduct(t, environment, "Hidden Widget", 1000, 5, false)

	publicRecorder := environment.do(httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if publicRecorder.Code != http.StatusOK {
		t.Fatalf("expected 200 from public list, got %d", publicRecorder.Code)
	}
	var publicData struct {
		Products []commerce.Product `json:"products"`
	}
	if decodeErr := json.Unmarshal(decodeEnvelope(t, publicRecorder).Data, &publicData); decodeErr != nil {
		t.Fatalf("unexpected list decode error: %v", decodeErr)
	}
	if len(publicData.Products) != 1 || publicData.Products[0].Name != "Visible Widget" {
		t.Fatalf("expected only the active product, got %+v", publicData.Products)
	}

	adminToken := seedAdmin(t, environment)
	adminRecorder := environment.do(bearer(httptest.NewRequest(http.MethodGet, "/api/products", nil), adminToken))
	var adminData struct {
		Products []commerce.Product `json:"products"`
	}
	if decodeErr := json.Unmarshal(decodeEnvelope(t, adminRecorder).Data, &adminData); decodeErr != nil {
		t.Fatalf("unexpected admin list decode error: %v", decodeErr)
	}
	if len(adminData.Products) != 2 {
		t.Fatalf("expected admin to see both products, got %d", len(adminData.Products))
	}

	missing := environment.do(httptest.NewRequest(http.MethodGet, "/api/products/no-such-id", nil))
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", missing.Code)
	}
}

func TestCartFlowOverHTTP(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)

	product := seedProduct(t, environment, "Widget", 1999, 3, true)
	shopper, _ := registerShopper(t, environment, "cart@example.com", "sup3r-secret")
	token := shopper.Tokens.AccessToken

	added := environment.do(bearer(jsonRequest(t, http.MethodPost, "/api/cart/items", gin.H{
		"productId": product.ID,
		"quantity":  2,
	}), token))
	if added.Code != http.StatusOK {
		t.Fatalf("expected 200 adding item, got %d (%s)", added.Code, added.Body.String())
	}

	overStock := environment.do(bearer(jsonRequest(t, http.MethodPost, "/api/cart/items", gin.H{
		"productId": product.ID,
		"quantity":  2,
	}), token))
	if overStock.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when exceeding stock, got %d", overStock.Code)
	}

	fetched := environment.do(bearer(httptest.NewRequest(http.MethodGet, "/api/cart", nil), token))
	var cartData struct {
		Cart commerce.Cart `json:"cart"`
	}
	if decodeErr := json.Unmarshal(decodeEnvelope(t, fetched).Data, &cartData); decodeErr != nil {
		t.Fatalf("unexpected cart decode error: %v", decodeErr)
	}
	if len(cartData.Cart.Items) != 1 || cartData.Cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart contents: %+v", cartData.Cart.Items)
	}

	removed := environment.do(bearer(httptest.NewRequest(http.MethodDelete, "/api/cart/items/"+product.ID, nil), token))
	if removed.Code != http.StatusOK {
		t.Fatalf("expected 200 removing item, got %d", removed.Code)
	}

	anonymous := environment.do(httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	if anonymous.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous cart access, got %d", anonymous.Code)
	}
}

func TestPaymentIntentAndWebhookLifecycle(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)

	product := seedProduct(t, environment, "Widget", 2500, 10, true)
	shopper, _ := registerShopper(t, environment, "buyer@example.com", "sup3r-secret")
	token := shopper.Tokens.AccessToken

	intentRecorder := environment.do(bearer(jsonRequest(t, http.MethodPost, "/api/payments/intent", gin.H{
		"items": []gin.H{{"productId": product.ID, "quantity": 2}},
	}), token))
	if intentRecorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 from intent, got %d (%s)", intentRecorder.Code, intentRecorder.Body.String())
	}
	var intentData commerce.CheckoutResult
	if decodeErr := json.Unmarshal(decodeEnvelope(t, intentRecorder).Data, &intentData); decodeErr != nil {
		t.Fatalf("unexpected intent decode error: %v", decodeErr)
	}
	if intentData.ClientSecret == "" || intentData.OrderID == "" {
		t.Fatalf("incomplete intent payload: %+v", intentData)
	}

	payload := []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"` + intentData.PaymentIntentID + `","metadata":{"orderId":"` + intentData.OrderID + `","userId":"` + shopper.User.ID + `"}}}}`)
	webhookRequest := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(payload))
	webhookRequest.Header.Set("Stripe-Signature", payments.SignWebhookPayload(payload, testWebhookSecret, time.Now()))
	webhookRecorder := environment.do(webhookRequest)
	if webhookRecorder.Code != http.StatusOK {
		t.Fatalf("expected 200 from webhook, got %d (%s)", webhookRecorder.Code, webhookRecorder.Body.String())
	}

	ordersRecorder := environment.do(bearer(httptest.NewRequest(http.MethodGet, "/api/orders", nil), token))
	var ordersData struct {
		Orders []commerce.Order `json:"orders"`
	}
	if decodeErr := json.Unmarshal(decodeEnvelope(t, ordersRecorder).Data, &ordersData); decodeErr != nil {
		t.Fatalf("unexpected orders decode error: %v", decodeErr)
	}
	if len(ordersData.Orders) != 1 || ordersData.Orders[0].Status != commerce.OrderPaid {
		t.Fatalf("expected one paid order, got %+v", ordersData.Orders)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)

	payload := []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_x"}}}`)
	request := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(payload))
	request.Header.Set("Stripe-Signature", payments.SignWebhookPayload(payload, "wrong-secret", time.Now()))
	if recorder := environment.do(request); recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", recorder.Code)
	}
}

func TestAdminOrderStatusUpdate(t *testing.T) {
	t.Parallel()
	environment := newTestEnvironment(t)

	product := seedProduct(t, environment, "Widget", 2500, 10, true)
	shopper, _ := registerShopper(t, environment, "buyer@example.com", "sup3r-secret")

	intentRecorder := environment.do(bearer(jsonRequest(t, http.MethodPost, "/api/payments/intent", gin.H{
		"items": []gin.H{{"productId": product.ID, "quantity": 1}},
	}), shopper.Tokens.AccessToken))
	var intentData commerce.CheckoutResult
	if decodeErr := json.Unmarshal(decodeEnvelope(t, intentRecorder).Data, &intentData); decodeErr != nil {
		t.Fatalf("unexpected intent decode error: %v", decodeErr)
	}

	forbidden := environment.do(bearer(jsonRequest(t, http.MethodPatch, "/api/admin/orders/"+intentData.OrderID+"/status", gin.H{
		"status": "shipped",
	}), shopper.Tokens.AccessToken))
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for shopper status update, got %d", forbidden.Code)
	}

	adminToken := seedAdmin(t, environment)
	badStatus := environment.do(bearer(jsonRequest(t, http.MethodPatch, "/api/admin/orders/"+intentData.OrderID+"/status", gin.H{
		"status": "misplaced",
	}), adminToken))
	if badStatus.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", badStatus.Code)
	}

	updated := environment.do(bearer(jsonRequest(t, http.MethodPatch, "/api/admin/orders/"+intentData.OrderID+"/status", gin.H{
		"status": "shipped",
	}), adminToken))
	if updated.Code != http.StatusOK {
		t.Fatalf("expected 200 from status update, got %d (%s)", updated.Code, updated.Body.String())
	}
	var orderData struct {
		Order commerce.Order `json:"order"`
	}
	if decodeErr := json.Unmarshal(decodeEnvelope(t, updated).Data, &orderData); decodeErr != nil {
		t.Fatalf("unexpected order decode error: %v", decodeErr)
	}
	if orderData.Order.Status != commerce.OrderShipped {
		t.Fatalf("expected shipped order, got %q", orderData.Order.Status)
	}
}
