package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/garagely/api/api"
	"github.com/garagely/api/api/background"
	"github.com/garagely/api/cache"
	"github.com/garagely/api/cms"
	"github.com/garagely/api/config"
	"github.com/garagely/api/core/booking"
	"github.com/garagely/api/core/booking/catalog"
	"github.com/garagely/api/core/cart"
	"github.com/garagely/api/rate"
	"github.com/garagely/api/syncq"
	"github.com/gorilla/mux"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-mock/param"
)

const (
	testPhone         = "9876543210"
	testOTP           = "123456"
	testWebhookSecret = "whsec_test"
	testServiceToken  = "service-token"
)

// TestEnv runs the whole API against in-process mocks of the content store
// and both payment providers.
type TestEnv struct {
	URL    string
	Server *httptest.Server
	Sync   *syncq.Syncer
	Store  *mockStore
	Paypal *mockPaypal
	Stripe *mockStripe

	WebhookSecret string

	jar http.CookieJar
}

func (e *TestEnv) Client() *http.Client {
	return &http.Client{Jar: e.jar}
}

// Flush delivers everything the sync queue holds, so tests can assert on the
// mock store deterministically.
func (e *TestEnv) Flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.Sync.Flush(ctx)
}

func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store := newMockStore()
	storeSrv := httptest.NewServer(store.handler())
	t.Cleanup(storeSrv.Close)

	pp := &mockPaypal{}
	ppSrv := httptest.NewServer(pp.handler())
	t.Cleanup(ppSrv.Close)

	st := &mockStripe{}
	stSrv := httptest.NewServer(st.handler())
	t.Cleanup(stSrv.Close)

	ppClient, err := paypal.NewClient("client", "secret", ppSrv.URL)
	if err != nil {
		t.Fatalf("building paypal client: %v", err)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL: stripe.String(stSrv.URL),
	})
	strp := &stripecl.API{}
	strp.Init("sk_test", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	session := scs.New()
	session.Lifetime = time.Hour

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}

	syncer := syncq.NewSyncer(logger)

	env := &TestEnv{
		Sync:          syncer,
		Store:         store,
		Paypal:        pp,
		Stripe:        st,
		WebhookSecret: testWebhookSecret,
	}

	mux := api.APIMux(api.APIConfig{
		Log:           logger,
		Session:       session,
		Cache:         cache.NewMemory(),
		CMS:           cms.New(storeSrv.URL, 5*time.Second),
		CMSCfg:        config.CMS{URL: storeSrv.URL, ServiceToken: testServiceToken},
		Sync:          syncer,
		Background:    background.New(logger),
		Flow:          booking.NewFlow(cat, "919999999999", 0, time.Second),
		Conversations: booking.NewRegistry(time.Hour),
		OTPLimiter:    rate.NewLimiter(100, 10, 100),
		Paypal:        ppClient,
		Stripe:        strp,
		StripeCfg: config.Stripe{
			WebhookSecret: testWebhookSecret,
			SuccessURL:    "http://localhost:3000/checkout/success",
			CancelURL:     "http://localhost:3000/checkout/cancel",
		},
		Pricing: cart.DefaultPricing(),
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("building cookie jar: %v", err)
	}

	env.URL = srv.URL
	env.Server = srv
	env.jar = jar

	return env
}

func (e *TestEnv) post(t *testing.T, path string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	r, err := http.NewRequest(http.MethodPost, e.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}

	w, err := e.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Body.Close() })

	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s response: %v", path, err)
		}
	}
	return w
}

func (e *TestEnv) Login(t *testing.T) {
	t.Helper()

	w := e.post(t, "/auth/otp", map[string]string{"phone": testPhone}, nil)
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("requesting otp: status %s", w.Status)
	}

	var user cms.User
	w = e.post(t, "/auth/otp/verify", map[string]string{"phone": testPhone, "code": testOTP}, &user)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("verifying otp: status %s", w.Status)
	}
}

func (e *TestEnv) Logout(t *testing.T) {
	t.Helper()
	if w := e.post(t, "/auth/logout", nil, nil); w.StatusCode != http.StatusNoContent {
		t.Fatalf("logging out: status %s", w.Status)
	}
}

// mockStore is an in-memory stand-in for the content store's REST API.
type mockStore struct {
	mu      sync.Mutex
	nextID  int
	carts   map[int]cms.CartUpsert
	orders  map[int]cms.Order
	leads   map[int]cms.Lead
	coupons map[string]int
}

func newMockStore() *mockStore {
	return &mockStore{
		nextID:  1,
		carts:   make(map[int]cms.CartUpsert),
		orders:  make(map[int]cms.Order),
		leads:   make(map[int]cms.Lead),
		coupons: map[string]int{"WELCOME100": 100},
	}
}

// OrderStatus reports the stored status for a provider payment id.
func (m *mockStore) OrderStatus(providerID string) (cms.OrderStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ProviderID == providerID {
			return o.Status, true
		}
	}
	return "", false
}

func (m *mockStore) LeadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads)
}

func (m *mockStore) id() int {
	id := m.nextID
	m.nextID++
	return id
}

func respond(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func decode(r *http.Request, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

func (m *mockStore) handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/auth/otp", func(w http.ResponseWriter, r *http.Request) {
		respond(w, nil, http.StatusOK)
	}).Methods("POST")

	r.HandleFunc("/auth/otp/verify", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Phone string `json:"phone"`
			Code  string `json:"code"`
		}
		if err := decode(r, &in); err != nil || in.Code != testOTP {
			respond(w, nil, http.StatusBadRequest)
			return
		}
		respond(w, map[string]any{
			"jwt":  "jwt-" + in.Phone,
			"user": cms.User{ID: 1, Phone: in.Phone, Name: "Test User"},
		}, http.StatusOK)
	}).Methods("POST")

	r.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		respond(w, cms.User{ID: 1, Phone: testPhone, Name: "Test User"}, http.StatusOK)
	}).Methods("GET")

	r.HandleFunc("/coupons/validate", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Code     string `json:"code"`
			Subtotal int    `json:"subtotal"`
		}
		if err := decode(r, &in); err != nil {
			respond(w, nil, http.StatusBadRequest)
			return
		}
		amount, ok := m.coupons[in.Code]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
				"status":  http.StatusBadRequest,
				"name":    "ValidationError",
				"message": "coupon code is not valid",
			}})
			return
		}
		respond(w, map[string]any{"code": in.Code, "discountAmount": amount}, http.StatusOK)
	}).Methods("POST")

	r.HandleFunc("/carts", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			var out []cms.RemoteCart
			for id, c := range m.carts {
				if c.Active {
					out = append(out, cms.RemoteCart{ID: id, Items: c.Items, Active: true})
				}
			}
			respond(w, out, http.StatusOK)

		case http.MethodPost:
			var up cms.CartUpsert
			if err := decode(r, &up); err != nil {
				respond(w, nil, http.StatusBadRequest)
				return
			}
			id := m.id()
			m.carts[id] = up
			respond(w, cms.RemoteCart{ID: id, Items: up.Items, Active: up.Active}, http.StatusOK)
		}
	}).Methods("GET", "POST")

	r.HandleFunc("/carts/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(mux.Vars(r)["id"])

		m.mu.Lock()
		defer m.mu.Unlock()

		var up cms.CartUpsert
		if err := decode(r, &up); err != nil {
			respond(w, nil, http.StatusBadRequest)
			return
		}
		m.carts[id] = up
		respond(w, cms.RemoteCart{ID: id, Items: up.Items, Active: up.Active}, http.StatusOK)
	}).Methods("PUT")

	r.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			filter := r.URL.Query().Get("filters[providerId][$eq]")
			var out []cms.Order
			for _, o := range m.orders {
				if filter == "" || o.ProviderID == filter {
					out = append(out, o)
				}
			}
			respond(w, out, http.StatusOK)

		case http.MethodPost:
			var in cms.NewOrder
			if err := decode(r, &in); err != nil {
				respond(w, nil, http.StatusBadRequest)
				return
			}
			id := m.id()
			ord := cms.Order{
				ID:         id,
				ProviderID: in.ProviderID,
				Status:     in.Status,
				Amount:     in.Amount,
				Items:      in.Items,
				CreatedAt:  time.Now().UTC(),
			}
			m.orders[id] = ord
			respond(w, ord, http.StatusOK)
		}
	}).Methods("GET", "POST")

	r.HandleFunc("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(mux.Vars(r)["id"])

		m.mu.Lock()
		defer m.mu.Unlock()

		ord, ok := m.orders[id]
		if !ok {
			respond(w, nil, http.StatusNotFound)
			return
		}

		var in struct {
			Status cms.OrderStatus `json:"status"`
		}
		if err := decode(r, &in); err != nil {
			respond(w, nil, http.StatusBadRequest)
			return
		}
		ord.Status = in.Status
		m.orders[id] = ord
		respond(w, ord, http.StatusOK)
	}).Methods("PUT")

	r.HandleFunc("/chatbot-bookings", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		var in cms.Lead
		if err := decode(r, &in); err != nil {
			respond(w, nil, http.StatusBadRequest)
			return
		}
		id := m.id()
		m.leads[id] = in
		respond(w, map[string]int{"id": id}, http.StatusOK)
	}).Methods("POST")

	r.HandleFunc("/chatbot-bookings/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(mux.Vars(r)["id"])

		m.mu.Lock()
		defer m.mu.Unlock()

		var in cms.Lead
		if err := decode(r, &in); err != nil {
			respond(w, nil, http.StatusBadRequest)
			return
		}
		m.leads[id] = in
		respond(w, map[string]int{"id": id}, http.StatusOK)
	}).Methods("PUT")

	return r
}

// mockPaypal fakes the two provider endpoints the checkout flow touches plus
// the token exchange the client performs on first use.
type mockPaypal struct {
	ExpectedTotal int
}

func (m *mockPaypal) handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	}).Methods("POST")

	r.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil || len(pu.Units) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if pu.Units[0].Amount.Value != strconv.Itoa(m.ExpectedTotal) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(paypal.Order{ID: "paypal-1", Status: "CREATED"})
	}).Methods("POST")

	r.HandleFunc("/v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(paypal.CaptureOrderResponse{ID: mux.Vars(r)["id"], Status: "COMPLETED"})
	}).Methods("POST")

	return r
}

// mockStripe fakes checkout session creation.
type mockStripe struct {
	ExpectedTotal int
}

func (m *mockStripe) handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		params, err := param.ParseParams(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		lines, ok := params["line_items"].(map[string]any)
		if !ok || len(lines) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		for _, li := range lines {
			it := li.(map[string]any)
			pd := it["price_data"].(map[string]any)

			amount, err := strconv.ParseInt(pd["unit_amount"].(string), 10, 0)
			if err != nil || int(amount) != m.ExpectedTotal*100 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":  "cs_test_1",
			"url": "https://checkout.stripe.test/cs_test_1",
		})
	}).Methods("POST")

	return r
}

// itemBody builds the add-to-cart payload for a fake catalog service.
func itemBody(id string, kind string, price int) map[string]any {
	return map[string]any{
		"serviceId":   id,
		"kind":        kind,
		"name":        "Service " + id,
		"description": "desc",
		"unitPrice":   price,
	}
}

func addItem(t *testing.T, e *TestEnv, id, kind string, price int) cart.Summary {
	t.Helper()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(itemBody(id, kind, price)); err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodPut, e.URL+"/cart/items", &buf)
	if err != nil {
		t.Fatal(err)
	}

	w, err := e.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("adding item %s: status %s", id, w.Status)
	}

	var sum cart.Summary
	if err := json.NewDecoder(w.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	return sum
}
