package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"myex/internal/core"
	"myex/internal/exchange"
	"myex/internal/ledger"
	"myex/internal/log"
	"myex/internal/refresh"
	"myex/internal/services"
	"myex/internal/sources"
	"myex/internal/sources/memory"
)

func june() time.Time { return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC) }

type fakePublisher struct{ ids, deleted []string }

func (f *fakePublisher) PublishTransactionRecorded(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return nil
}

func (f *fakePublisher) PublishTransactionDeleted(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fixedRate struct{}

func (fixedRate) Rate(_ context.Context, from, to core.Currency) exchange.Rate {
	return exchange.Rate{From: from, To: to, Value: decimal.RequireFromString("6"), Source: exchange.SourceAPI, FetchedAt: june()}
}

type testEnv struct {
	srv   *Server
	store *memory.Store
	pub   *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.New(log.DefaultConfig())
	store := memory.New()
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2025, time.June, d, 0, 0, 0, 0, time.UTC) }
	for _, tx := range []core.Transaction{
		{Date: day(2), Amount: decimal.NewFromInt(100), Category: core.Food, Type: core.Expense},
		{Date: day(10), Amount: decimal.NewFromInt(50), Category: core.Transport, Type: core.Expense},
		{Date: day(5), Amount: decimal.NewFromInt(1000), Category: core.Other, Type: core.Income},
	} {
		if _, err := store.AddTransaction(ctx, tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	d := refresh.NewDispatcher(ledger.New(ledger.Config{Now: june}), logger)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(runCtx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	svc := refresh.NewService(d, store, fixedRate{}, refresh.Options{}, logger)
	if err := svc.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}

	pub := &fakePublisher{}
	srv := NewServer(":0", Deps{
		Dispatcher:   d,
		Reloader:     svc,
		Trips:        store,
		Transactions: services.NewTransactionService(store, store, pub, svc, logger),
		Rates:        fixedRate{},
	}, logger)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return &testEnv{srv: srv, store: store, pub: pub}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) ledgerView {
	t.Helper()
	var v ledgerView
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v (%s)", err, rr.Body.String())
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("middleware headers missing: %v", rr.Header())
	}
}

func TestLedgerView(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/ledger", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	v := decodeView(t, rr)
	if v.Period != "2025-06" || v.Currency != "EUR" || v.Rate != "6" || !v.Navigation.IsCurrent {
		t.Fatalf("unexpected header: %+v", v)
	}
	if len(v.Transactions) != 3 || v.Transactions[0].Date != "2025-06-10" {
		t.Fatalf("listing should be newest first: %+v", v.Transactions)
	}
	if v.Stats.TotalSpent != "€150.00" || v.Stats.TransactionCount != 2 || v.Stats.DaysInMonth != 30 {
		t.Fatalf("unexpected stats: %+v", v.Stats)
	}
	if v.Stats.DailyAverage != "€5.00" || v.Stats.Balance != "€850.00" {
		t.Fatalf("unexpected averages: %+v", v.Stats)
	}
	if len(v.Stats.Categories) != 2 || v.Stats.Categories[0].Category != "food" {
		t.Fatalf("unexpected categories: %+v", v.Stats.Categories)
	}
}

func TestToggleCurrency(t *testing.T) {
	env := newTestEnv(t)
	v := decodeView(t, env.do(t, http.MethodPost, "/api/ledger/currency", ""))
	if v.Currency != "BRL" || v.Stats.TotalSpent != "R$900,00" {
		t.Fatalf("unexpected BRL view: currency=%s total=%s", v.Currency, v.Stats.TotalSpent)
	}
	v = decodeView(t, env.do(t, http.MethodPost, "/api/ledger/currency", ""))
	if v.Currency != "EUR" || v.Stats.TotalSpent != "€150.00" {
		t.Fatalf("toggle back failed: %+v", v.Stats)
	}
}

func TestNavigation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantPeriod string
	}{
		{"previous month", "/api/ledger/month?dir=-1", http.StatusOK, "2025-05"},
		{"next month", "/api/ledger/month?dir=1", http.StatusOK, "2025-06"},
		{"next year resets month", "/api/ledger/year?dir=%2B1", http.StatusOK, "2026-01"},
		{"back to current keeps month", "/api/ledger/year?dir=-1", http.StatusOK, "2025-01"},
		{"current month", "/api/ledger/current", http.StatusOK, "2025-06"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, tt.target, "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
			}
			if v := decodeView(t, rr); v.Period != tt.wantPeriod {
				t.Fatalf("period = %s, want %s", v.Period, tt.wantPeriod)
			}
		})
	}
}

func TestNavigationErrors(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/api/ledger/month", "/api/ledger/month?dir=2", "/api/ledger/year?dir=up"} {
		if rr := env.do(t, http.MethodPost, target, ""); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", target, rr.Code)
		}
	}

	for i := 0; i < 10; i++ {
		if rr := env.do(t, http.MethodPost, "/api/ledger/year?dir=1", ""); rr.Code != http.StatusOK {
			t.Fatalf("step %d: status = %d", i, rr.Code)
		}
	}
	rr := env.do(t, http.MethodPost, "/api/ledger/year?dir=1", "")
	if rr.Code != http.StatusConflict || !strings.Contains(rr.Body.String(), "navigation limit") {
		t.Fatalf("expected 409, got %d %s", rr.Code, rr.Body.String())
	}

	v := decodeView(t, env.do(t, http.MethodGet, "/api/ledger", ""))
	if v.Year != 2035 || !v.Navigation.NextYearDisabled {
		t.Fatalf("cursor should stay on max year: %+v", v.Navigation)
	}

	if rr := env.do(t, http.MethodGet, "/api/ledger/month?dir=1", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET on a POST route = %d", rr.Code)
	}
}

func TestCreateTransaction(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2025-06-12","amount":"25,50","category":"lazer","type":"despesa","description":"cinema"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	if len(env.pub.ids) != 1 {
		t.Fatalf("event not published")
	}

	v := decodeView(t, env.do(t, http.MethodGet, "/api/ledger", ""))
	if v.Stats.TotalSpent != "€175.50" || v.Stats.TransactionCount != 3 {
		t.Fatalf("ledger not reloaded: %+v", v.Stats)
	}

	bad := []struct {
		body string
		code int
	}{
		{`{"date":"2025-06-12","amount":"-1","category":"food","type":"expense"}`, http.StatusUnprocessableEntity},
		{`{"date":"2025-06-12","amount":"1","category":"pets","type":"expense"}`, http.StatusUnprocessableEntity},
		{`{"date":"2025-06-12","amount":"1","category":"food","type":"expense","trip_id":"nope"}`, http.StatusUnprocessableEntity},
		{`{"date":"2025-06-12","amount":"1","category":"food","type":"expense","description":"` + strings.Repeat("x", 201) + `"}`, http.StatusUnprocessableEntity},
		{`{"amount":"1","unknown":true}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, b := range bad {
		if rr := env.do(t, http.MethodPost, "/api/transactions", b.body); rr.Code != b.code {
			t.Fatalf("%s: status = %d, want %d", b.body, rr.Code, b.code)
		}
	}
}

func TestTripSummary(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/trips", `{"name":"Rio","start":"2025-06-01","end":"2025-06-10","budget":"100"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create trip = %d (%s)", rr.Code, rr.Body.String())
	}
	var trip struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rr.Body.Bytes(), &trip)

	body := `{"date":"2025-06-02","amount":"90","category":"food","type":"expense","trip_id":"` + trip.ID + `"}`
	if rr := env.do(t, http.MethodPost, "/api/transactions", body); rr.Code != http.StatusCreated {
		t.Fatalf("create trip expense = %d (%s)", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/trips/"+trip.ID+"/summary", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary = %d", rr.Code)
	}
	var sum tripSummaryView
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.TotalSpent != "€90.00" || sum.DurationDays != 10 || sum.Alert != "warning" || sum.Status != "on_track" {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	// Trip expenses stay out of the monthly stats.
	v := decodeView(t, env.do(t, http.MethodGet, "/api/ledger", ""))
	if v.Stats.TotalSpent != "€150.00" {
		t.Fatalf("trip expense leaked into June stats: %s", v.Stats.TotalSpent)
	}

	if rr := env.do(t, http.MethodGet, "/api/trips/missing/summary", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("missing trip = %d", rr.Code)
	}
}

func TestListAndDeleteTransactions(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/transactions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list = %d", rr.Code)
	}
	var list []sources.TransactionRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list) != 3 {
		t.Fatalf("list = %v, %v", list, err)
	}

	var food string
	for _, rec := range list {
		if rec.Category == "food" {
			food = rec.ID
		}
	}
	if rr := env.do(t, http.MethodDelete, "/api/transactions/"+food, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d (%s)", rr.Code, rr.Body.String())
	}
	if len(env.pub.deleted) != 1 || env.pub.deleted[0] != food {
		t.Fatalf("deletion not published: %v", env.pub.deleted)
	}

	v := decodeView(t, env.do(t, http.MethodGet, "/api/ledger", ""))
	if v.Stats.TotalSpent != "€50.00" || len(v.Transactions) != 2 {
		t.Fatalf("ledger not reloaded after delete: %+v", v.Stats)
	}

	if rr := env.do(t, http.MethodDelete, "/api/transactions/"+food, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", rr.Code)
	}
}

func TestListAndDeleteTrips(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/trips", `{"name":"Rio","start":"2025-06-01","end":"2025-06-10","budget":"100"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create trip = %d (%s)", rr.Code, rr.Body.String())
	}
	var trip sources.TripRecord
	json.Unmarshal(rr.Body.Bytes(), &trip)
	body := `{"date":"2025-06-03","amount":"40","category":"food","type":"expense","trip_id":"` + trip.ID + `"}`
	if rr := env.do(t, http.MethodPost, "/api/transactions", body); rr.Code != http.StatusCreated {
		t.Fatalf("create trip expense = %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/trips", "")
	var trips []sources.TripRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &trips); err != nil || len(trips) != 1 || trips[0].Name != "Rio" {
		t.Fatalf("trips = %v, %v", trips, err)
	}

	rr = env.do(t, http.MethodGet, "/api/transactions?trip="+trip.ID, "")
	var tripTxs []sources.TransactionRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &tripTxs); err != nil || len(tripTxs) != 1 {
		t.Fatalf("trip transactions = %v, %v", tripTxs, err)
	}

	rr = env.do(t, http.MethodDelete, "/api/trips/"+trip.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete trip = %d (%s)", rr.Code, rr.Body.String())
	}
	var deleted tripDeletedView
	json.Unmarshal(rr.Body.Bytes(), &deleted)
	if deleted.Detached != 1 {
		t.Fatalf("detached = %d, want 1", deleted.Detached)
	}

	// The detached expense now counts toward June.
	v := decodeView(t, env.do(t, http.MethodGet, "/api/ledger", ""))
	if v.Stats.TotalSpent != "€190.00" {
		t.Fatalf("detached expense missing from stats: %s", v.Stats.TotalSpent)
	}

	if rr := env.do(t, http.MethodDelete, "/api/trips/"+trip.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", rr.Code)
	}
}

func TestExchangeRate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/exchange-rate?amount=10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp exchangeRateResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.From != "EUR" || resp.To != "BRL" || resp.Rate != "6" || resp.Converted != "R$60,00" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if rr := env.do(t, http.MethodGet, "/api/exchange-rate?from=USD", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown currency = %d", rr.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()
	now := june()
	rl.now = func() time.Time { return now }

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") || rl.allow("1.2.3.4") {
		t.Fatal("third request in window should be refused")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatal("clients are limited independently")
	}
	now = now.Add(time.Minute)
	if !rl.allow("1.2.3.4") {
		t.Fatal("new window should allow again")
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		remote string
		xff    string
		want   string
	}{
		{"203.0.113.9:1234", "198.51.100.1", "203.0.113.9"},
		{"127.0.0.1:1234", "198.51.100.1, 10.0.0.1", "198.51.100.1"},
		{"10.0.0.2:80", "garbage", "10.0.0.2"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remote
		r.Header.Set("X-Forwarded-For", tt.xff)
		if got := extractClientIP(r); got != tt.want {
			t.Errorf("extractClientIP(%s, %s) = %s, want %s", tt.remote, tt.xff, got, tt.want)
		}
	}
}

func TestStoppedDispatcherAndReadOnlyBackend(t *testing.T) {
	logger := log.New(log.DefaultConfig())
	d := refresh.NewDispatcher(ledger.New(ledger.Config{Now: june}), logger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	srv := NewServer(":0", Deps{Dispatcher: d}, logger)
	defer srv.rateLimiter.stop()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ledger", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(`{}`)),
		httptest.NewRequest(http.MethodDelete, "/api/transactions/abc", nil),
		httptest.NewRequest(http.MethodDelete, "/api/trips/abc", nil),
		httptest.NewRequest(http.MethodGet, "/api/trips", nil),
	} {
		rr = httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("%s %s = %d, want 501", req.Method, req.URL.Path, rr.Code)
		}
	}
}

func TestIsSuspiciousPath(t *testing.T) {
	for path, want := range map[string]bool{
		"/api/ledger":          false,
		"/api/trips/x/summary": false,
		"/.env":                true,
		"/static/../../etc":    true,
		"/WP-ADMIN/login":      true,
	} {
		if got := isSuspiciousPath(path); got != want {
			t.Errorf("isSuspiciousPath(%q) = %v, want %v", path, got, want)
		}
	}
}
