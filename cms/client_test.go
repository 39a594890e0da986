package cms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second)
}

func TestBearerAndEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		if r.URL.Path != "/users/me" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": 7, "name": "Asha", "phone": "9876543210"},
		})
	})

	u, err := c.WithToken("tok-123").CurrentUser(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != 7 || u.Name != "Asha" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestWithTokenDoesNotMutateReceiver(t *testing.T) {
	base := New("http://example.invalid", time.Second)
	derived := base.WithToken("tok")

	if base.token != "" {
		t.Fatal("WithToken mutated the base client")
	}
	if derived.token != "tok" {
		t.Fatal("derived client is missing the token")
	}
}

func TestErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"status": 400, "name": "ValidationError", "message": "invalid coupon"},
		})
	})

	_, err := c.ValidateCoupon(context.Background(), "NOPE", 100)
	if err == nil {
		t.Fatal("expected error")
	}

	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if ce.Status != 400 || ce.Message != "invalid coupon" {
		t.Fatalf("unexpected error payload: %+v", ce)
	}
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"status": 404, "name": "NotFoundError", "message": "not found"},
		})
	})

	err := c.DeleteCar(context.Background(), 99)
	if !NotFound(err) {
		t.Fatalf("expected NotFound to report true, err=%v", err)
	}
}

func TestLatestActiveCartEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})

	_, err := c.LatestActiveCart(context.Background())
	if !errors.Is(err, ErrNoCart) {
		t.Fatalf("expected ErrNoCart, got %v", err)
	}
}

func TestRequestBodyWrapping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if _, ok := body["data"]; !ok {
			t.Error("request body is not wrapped in a data envelope")
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 3}})
	})

	id, err := c.CreateLead(context.Background(), Lead{Phone: strPtr("9876543210")})
	if err != nil {
		t.Fatal(err)
	}
	if id != 3 {
		t.Fatalf("unexpected lead id: %d", id)
	}
}

func strPtr(s string) *string { return &s }
