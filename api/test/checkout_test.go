package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/garagely/api/cms"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

func TestPaypalCheckout(t *testing.T) {
	env := NewTestEnv(t)
	env.Login(t)

	addItem(t, env, "svc-1", "regular", 1999)
	addItem(t, env, "svc-2", "regular", 500)
	addItem(t, env, "svc-3", "regular", 300)
	env.Paypal.ExpectedTotal = 2660

	var ord paypal.Order
	w := env.post(t, "/orders/paypal", nil, &ord)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("creating paypal order: status %s", w.Status)
	}
	if ord.ID == "" {
		t.Fatal("paypal order id missing")
	}

	// A pending order must already exist on the store.
	if st, ok := env.Store.OrderStatus(ord.ID); !ok || st != cms.OrderPending {
		t.Fatalf("expected pending stored order, got %q ok=%v", st, ok)
	}

	w = env.post(t, "/orders/paypal/"+ord.ID+"/capture", nil, nil)
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("capturing paypal order: status %s", w.Status)
	}

	if st, _ := env.Store.OrderStatus(ord.ID); st != cms.OrderSuccess {
		t.Fatalf("expected order marked success, got %q", st)
	}

	// The cart is cleared once the payment lands.
	r, _ := http.NewRequest(http.MethodGet, env.URL+"/cart", nil)
	resp, err := env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var sum summary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	if !sum.IsEmpty {
		t.Fatal("expected empty cart after capture")
	}
}

func TestPaypalCheckoutEmptyCart(t *testing.T) {
	env := NewTestEnv(t)
	env.Login(t)

	var body struct {
		Error    string `json:"error"`
		Redirect string `json:"redirect"`
	}
	w := env.post(t, "/orders/paypal", nil, &body)
	if w.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty-cart checkout must 422: status %s", w.Status)
	}
	if body.Redirect != "/cart" {
		t.Fatalf("expected a cart redirect hint, got %q", body.Redirect)
	}
}

func TestStripeCheckout(t *testing.T) {
	env := NewTestEnv(t)
	env.Login(t)

	addItem(t, env, "svc-1", "regular", 1999)
	env.Stripe.ExpectedTotal = 1999

	var url string
	w := env.post(t, "/orders/stripe", nil, &url)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("creating stripe session: status %s", w.Status)
	}
	if url == "" {
		t.Fatal("stripe session url missing")
	}

	if st, ok := env.Store.OrderStatus("cs_test_1"); !ok || st != cms.OrderPending {
		t.Fatalf("expected pending stored order, got %q ok=%v", st, ok)
	}

	// The provider confirms the payment through the signed webhook.
	obj := map[string]any{
		"id":   "cs_test_1",
		"mode": stripe.CheckoutSessionModePayment,
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: "2022-11-15",
		Type:       "checkout.session.completed",
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    env.WebhookSecret,
		Timestamp: time.Now(),
	})

	r, err := http.NewRequest(http.MethodPost, env.URL+"/orders/stripe/capture", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", signed.Header)

	resp, err := env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("triggering stripe webhook: status %s", resp.Status)
	}

	if st, _ := env.Store.OrderStatus("cs_test_1"); st != cms.OrderSuccess {
		t.Fatalf("expected order marked success, got %q", st)
	}
}

func TestStripeWebhookRejectsUnsigned(t *testing.T) {
	env := NewTestEnv(t)

	r, err := http.NewRequest(http.MethodPost, env.URL+"/orders/stripe/capture", bytes.NewBufferString("{}"))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsigned webhook must be rejected: status %s", resp.Status)
	}
}

func TestCheckoutCancel(t *testing.T) {
	env := NewTestEnv(t)
	env.Login(t)

	addItem(t, env, "svc-1", "regular", 1999)
	env.Paypal.ExpectedTotal = 1999

	var ord paypal.Order
	if w := env.post(t, "/orders/paypal", nil, &ord); w.StatusCode != http.StatusOK {
		t.Fatalf("creating paypal order: status %s", w.Status)
	}

	var body struct {
		Message string `json:"message"`
		Retry   bool   `json:"retry"`
	}
	w := env.post(t, "/orders/cancel", map[string]string{"providerId": ord.ID}, &body)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("cancelling order: status %s", w.Status)
	}
	if !body.Retry || body.Message == "" {
		t.Fatalf("expected a generic retryable message, got %+v", body)
	}

	// The failure mark runs off-request.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if st, _ := env.Store.OrderStatus(ord.ID); st == cms.OrderFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("order never marked failed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
