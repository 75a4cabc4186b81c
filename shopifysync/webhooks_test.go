package shopifysync

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "shpss_test_secret"
	body := []byte(`{"id":123}`)

	cases := []struct {
		name      string
		secret    string
		signature string
		expected  bool
	}{
		{"valid signature", secret, signBody(secret, body), true},
		{"wrong secret", "other_secret", signBody(secret, body), false},
		{"tampered body signature", secret, signBody(secret, []byte(`{"id":999}`)), false},
		{"missing signature", secret, "", false},
		{"missing secret", "", signBody(secret, body), false},
		{"garbage signature", secret, "not-base64!!", false},
	}
	for _, tc := range cases {
		if got := VerifyWebhookSignature(tc.secret, body, tc.signature); got != tc.expected {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}

func webhookRequest(t *testing.T, body string, signature string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/orders/create", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(webhookSignatureHeader, signature)
	}
	c.Request = req
	return c, w
}

func TestOrderWebhookHandler_RejectsBadSignature(t *testing.T) {
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", "shpss_test_secret")

	c, w := webhookRequest(t, `{"id":123}`, "bogus-signature")
	OrderWebhookHandler(nil, "orders/create")(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOrderWebhookHandler_RejectsMissingSignature(t *testing.T) {
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", "shpss_test_secret")

	c, w := webhookRequest(t, `{"id":123}`, "")
	OrderWebhookHandler(nil, "orders/create")(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOrderWebhookHandler_RejectsWhenSecretUnset(t *testing.T) {
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", "")

	body := `{"id":123}`
	c, w := webhookRequest(t, body, signBody("anything", []byte(body)))
	OrderWebhookHandler(nil, "orders/create")(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOrderWebhookHandler_RejectsMalformedPayload(t *testing.T) {
	secret := "shpss_test_secret"
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", secret)

	cases := []struct {
		name string
		body string
	}{
		{"broken json", `{"id":`},
		{"missing id", `{"email":"a@b.com"}`},
	}
	for _, tc := range cases {
		c, w := webhookRequest(t, tc.body, signBody(secret, []byte(tc.body)))
		OrderWebhookHandler(nil, "orders/updated")(c)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestOrderDeleteWebhookHandler_RejectsBadSignature(t *testing.T) {
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", "shpss_test_secret")

	c, w := webhookRequest(t, `{"id":123}`, "bogus-signature")
	OrderDeleteWebhookHandler(nil)(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOrderDeleteWebhookHandler_RejectsMissingId(t *testing.T) {
	secret := "shpss_test_secret"
	t.Setenv("SHOPIFY_WEBHOOK_SECRET", secret)

	body := `{}`
	c, w := webhookRequest(t, body, signBody(secret, []byte(body)))
	OrderDeleteWebhookHandler(nil)(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
