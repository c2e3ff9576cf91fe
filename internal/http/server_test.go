package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"spendlog/internal/auth"
	"spendlog/internal/cache"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/services"
	"spendlog/internal/stats"
	"spendlog/internal/store"
	"spendlog/internal/store/memory"
)

const testPassword = "correct horse"

type testServer struct {
	srv    *Server
	store  *memory.Store
	tokens *auth.Tokens
	user   core.UserProfile
	token  string
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, mutate ...func(*Options)) *testServer {
	t.Helper()
	st := memory.New()
	tokens := auth.NewTokens("0123456789abcdef0123", time.Hour)
	snapshots := cache.NewLRUCache[services.Snapshot](10, time.Minute)
	statsSvc := services.NewStatsService(st, stats.New(), snapshots)

	opts := Options{
		Tokens:       tokens,
		Store:        st,
		Logger:       applog.New(applog.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)}),
		AdminToken:   "admin-secret",
		RateLimitRPM: 1000,
		CacheStats:   snapshots.Stats,
	}
	for _, m := range mutate {
		m(&opts)
	}

	srv, err := NewServer(":0", Services{
		Accounts:   services.NewAccountService(st, tokens, statsSvc),
		Categories: services.NewCategoryService(st, nil, statsSvc),
		Expenses:   services.NewExpenseService(st, nil, statsSvc, core.DefaultTimezone),
		Stats:      statsSvc,
	}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := core.UserProfile{
		ID:             "11111111-1111-1111-1111-111111111111",
		Email:          "ada@example.com",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Country:        "UK",
		Currency:       "USD",
		CurrencySymbol: "$",
		Timezone:       "America/New_York",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, st.CreateUser(context.Background(), store.User{UserProfile: user, PasswordHash: string(hash)}))

	token, err := tokens.Issue(auth.Principal{UserID: user.ID, Email: user.Email})
	require.NoError(t, err)

	return &testServer{srv: srv, store: st, tokens: tokens, user: user, token: token}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createCategory(t *testing.T, name string) core.Category {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/categories", map[string]string{"name": name}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[core.Category](t, rec)
}

func TestNewServer_RequiresTokens(t *testing.T) {
	_, err := NewServer(":0", Services{}, Options{})
	assert.Error(t, err)
}

func TestNewServer_RejectsBadTrustedProxy(t *testing.T) {
	_, err := NewServer(":0", Services{}, Options{
		Tokens:         auth.NewTokens("0123456789abcdef", time.Hour),
		TrustedProxies: []string{"not-a-cidr"},
	})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{
		"firstName": "Grace",
		"lastName":  "Hopper",
		"email":     "Grace@Example.com",
		"password":  "s3cret-pass",
		"country":   "US",
		"currency":  "eur",
		"timezone":  "Europe/Rome",
	}
	rec := ts.do(t, http.MethodPost, "/api/auth/register", body, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[registerResponse](t, rec)
	assert.Equal(t, "User created successfully", res.Message)
	assert.NotEmpty(t, res.UserID)

	rec = ts.do(t, http.MethodPost, "/api/auth/register", body, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", decode[errorBody](t, rec).Error)

	delete(body, "country")
	rec = ts.do(t, http.MethodPost, "/api/auth/register", body, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "ADA@example.com", Password: testPassword}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[loginResponse](t, rec)
	assert.Equal(t, "Login successful", res.Message)
	assert.Equal(t, loginUser{ID: ts.user.ID, Name: "Ada Lovelace", Email: "ada@example.com"}, res.User)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	p, err := ts.tokens.Parse(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, ts.user.ID, p.UserID)
}

func TestLogin_Failures(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body loginRequest
		want int
	}{
		{"missing password", loginRequest{Email: "ada@example.com"}, http.StatusBadRequest},
		{"wrong password", loginRequest{Email: "ada@example.com", Password: "nope"}, http.StatusUnauthorized},
		{"unknown email", loginRequest{Email: "bob@example.com", Password: testPassword}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/auth/login", tt.body, false)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/logout", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/expenses"},
		{http.MethodPost, "/api/expenses"},
		{http.MethodDelete, "/api/expenses/x"},
		{http.MethodGet, "/api/expenses/stats"},
		{http.MethodGet, "/api/expenses/summary"},
		{http.MethodGet, "/api/categories"},
		{http.MethodPost, "/api/categories"},
		{http.MethodDelete, "/api/categories/x"},
		{http.MethodPut, "/api/categories/reorder"},
		{http.MethodPost, "/api/categories/update-colors"},
		{http.MethodGet, "/api/user/settings"},
		{http.MethodPut, "/api/user/settings"},
	} {
		rec := ts.do(t, route.method, route.path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
		assert.Equal(t, "Unauthorized", decode[errorBody](t, rec).Error)
	}
}

func TestCookieAuth(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: ts.token})
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCategories_CRUD(t *testing.T) {
	ts := newTestServer(t)

	food := ts.createCategory(t, "  Food ")
	assert.Equal(t, "Food", food.Name)
	assert.Contains(t, core.Palette, food.Color)
	assert.Equal(t, 0, food.Order)

	rec := ts.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Fun", "color": "#123456"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	fun := decode[core.Category](t, rec)
	assert.Equal(t, "#123456", fun.Color)
	assert.Equal(t, 1, fun.Order)

	rec = ts.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Food"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Category already exists", decode[errorBody](t, rec).Error)

	rec = ts.do(t, http.MethodPost, "/api/categories", map[string]string{"name": " "}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/categories", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]core.Category](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"Food", "Fun"}, []string{list[0].Name, list[1].Name})

	rec = ts.do(t, http.MethodDelete, "/api/categories/"+food.ID, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Category and all associated expenses deleted successfully", decode[messageBody](t, rec).Message)

	rec = ts.do(t, http.MethodDelete, "/api/categories/"+food.ID, nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Category not found", decode[errorBody](t, rec).Error)
}

func TestCategories_Reorder(t *testing.T) {
	ts := newTestServer(t)
	a := ts.createCategory(t, "A")
	b := ts.createCategory(t, "B")

	body := map[string]any{"categoryOrders": []store.CategoryOrder{
		{CategoryID: a.ID, Order: 1},
		{CategoryID: b.ID, Order: 0},
		{CategoryID: "someone-elses", Order: 2},
	}}
	rec := ts.do(t, http.MethodPut, "/api/categories/reorder", body, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[reorderResponse](t, rec)
	assert.Equal(t, 2, res.UpdatedCount)

	list := decode[[]core.Category](t, ts.do(t, http.MethodGet, "/api/categories", nil, true))
	require.Len(t, list, 2)
	assert.Equal(t, []string{"B", "A"}, []string{list[0].Name, list[1].Name})

	for _, bad := range []string{`{"categoryOrders":{"a":1}}`, `{}`, `{"categoryOrders":"x"}`} {
		rec := ts.do(t, http.MethodPut, "/api/categories/reorder", bad, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.Equal(t, "Invalid category orders format", decode[errorBody](t, rec).Error)
	}
}

func TestCategories_UpdateColors(t *testing.T) {
	ts := newTestServer(t)
	ts.createCategory(t, "A")
	ts.createCategory(t, "B")

	rec := ts.do(t, http.MethodPost, "/api/categories/update-colors", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[colorsResponse](t, rec)
	assert.Equal(t, 2, res.UpdatedCount)
	require.Len(t, res.Categories, 2)
	assert.Equal(t, core.Palette[0], res.Categories[0].Color)
	assert.Equal(t, core.Palette[1], res.Categories[1].Color)
}

func TestExpenses_CreateListDelete(t *testing.T) {
	ts := newTestServer(t)
	food := ts.createCategory(t, "Food")

	rec := ts.do(t, http.MethodPost, "/api/expenses", `{"amount": 12.50, "categoryId": "`+food.ID+`", "date": "2024-06-15"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"amount":12.5`)
	assert.Contains(t, rec.Body.String(), `"category":{`)
	created := decode[expenseView](t, rec)
	assert.Equal(t, "12.5", created.Amount.String())
	assert.Equal(t, "Food expense", created.Description)
	require.NotNil(t, created.Category)
	assert.Equal(t, "Food", created.Category.Name)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.True(t, created.Date.Equal(time.Date(2024, 6, 15, 0, 0, 0, 0, ny)))

	rec = ts.do(t, http.MethodPost, "/api/expenses", map[string]string{"amount": "3", "categoryId": food.ID, "description": "coffee"}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/expenses", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]expenseView](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "coffee", list[0].Description, "newest first")

	rec = ts.do(t, http.MethodDelete, "/api/expenses/"+created.ID, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Expense deleted successfully", decode[messageBody](t, rec).Message)

	rec = ts.do(t, http.MethodDelete, "/api/expenses/"+created.ID, nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Expense not found", decode[errorBody](t, rec).Error)
}

func TestExpenses_CreateValidation(t *testing.T) {
	ts := newTestServer(t)
	food := ts.createCategory(t, "Food")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing amount", `{"categoryId":"` + food.ID + `"}`, http.StatusBadRequest},
		{"missing category", `{"amount":"5"}`, http.StatusBadRequest},
		{"negative amount", `{"amount":-5,"categoryId":"` + food.ID + `"}`, http.StatusBadRequest},
		{"garbage amount", `{"amount":"abc","categoryId":"` + food.ID + `"}`, http.StatusBadRequest},
		{"bad date", `{"amount":"5","categoryId":"` + food.ID + `","date":"June 1st"}`, http.StatusBadRequest},
		{"unknown category", `{"amount":"5","categoryId":"nope"}`, http.StatusNotFound},
		{"not json", `amount=5`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/expenses", tt.body, true)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestExpenses_CreateNotFoundMessages(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/expenses", `{"amount":"5","categoryId":"nope"}`, true)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Category not found", decode[errorBody](t, rec).Error)

	// A valid token whose user has since disappeared.
	ghost := "22222222-2222-2222-2222-222222222222"
	require.NoError(t, ts.store.CreateCategory(context.Background(), core.Category{
		ID: "ghost-food", UserID: ghost, Name: "Food", Color: "#FF6B6B", CreatedAt: time.Now(),
	}))
	token, err := ts.tokens.Issue(auth.Principal{UserID: ghost, Email: "ghost@example.com"})
	require.NoError(t, err)
	ts.token = token

	rec = ts.do(t, http.MethodPost, "/api/expenses", `{"amount":"5","categoryId":"ghost-food"}`, true)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode[errorBody](t, rec).Error)
}

func TestExpenses_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t)

	big := `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := ts.do(t, http.MethodPost, "/api/expenses", big, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)
	food := ts.createCategory(t, "Food")
	fun := ts.createCategory(t, "Fun")

	for _, e := range []struct {
		amount, categoryID string
	}{{"10", food.ID}, {"30", food.ID}, {"20", fun.ID}} {
		rec := ts.do(t, http.MethodPost, "/api/expenses", map[string]string{"amount": e.amount, "categoryId": e.categoryID}, true)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := ts.do(t, http.MethodGet, "/api/expenses/stats?period=monthly&limit=2", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[stats.Result](t, rec)

	assert.Equal(t, "60", res.Daily.Total.String())
	assert.Equal(t, "60", res.Monthly.Total.String())
	assert.Equal(t, core.PeriodMonthly, res.Period)
	require.Len(t, res.CategoryStats, 2)
	assert.Equal(t, "Food", res.CategoryStats[0].CategoryName)
	assert.Equal(t, "66.7", res.CategoryStats[0].Percentage)
	assert.Equal(t, "33.3", res.CategoryStats[1].Percentage)
	assert.Len(t, res.Recent.Expenses, 2)
	assert.Equal(t, stats.Pagination{CurrentPage: 1, TotalPages: 2, TotalItems: 3, HasNextPage: true}, res.Recent.Pagination)

	rec = ts.do(t, http.MethodGet, "/api/expenses/stats?categoryId="+fun.ID, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[stats.Result](t, rec)
	assert.Equal(t, core.PeriodDaily, res.Period)
	assert.Equal(t, 1, res.Recent.Pagination.TotalItems)

	rec = ts.do(t, http.MethodGet, "/api/expenses/stats?period=yearly", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/expenses/summary", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	totals := decode[stats.Totals](t, rec)
	assert.Equal(t, "60", totals.Daily.String())
	assert.Equal(t, "America/New_York", totals.Timezone)
}

func TestStats_PagesPastOneHundred(t *testing.T) {
	ts := newTestServer(t)
	food := ts.createCategory(t, "Food")
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 1200 {
		require.NoError(t, ts.store.CreateExpense(ctx, core.Expense{
			ID:          fmt.Sprintf("e%04d", i),
			UserID:      ts.user.ID,
			CategoryID:  food.ID,
			Description: "Food expense",
			Amount:      decimal.NewFromInt(1),
			Date:        base.Add(time.Duration(i) * time.Hour),
			CreatedAt:   base,
		}))
	}

	rec := ts.do(t, http.MethodGet, "/api/expenses/stats?page=110&limit=10", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[stats.Result](t, rec)

	assert.Equal(t, stats.Pagination{CurrentPage: 110, TotalPages: 120, TotalItems: 1200, HasNextPage: true, HasPrevPage: true}, res.Recent.Pagination)
	require.Len(t, res.Recent.Expenses, 10)
	assert.Equal(t, "e0109", res.Recent.Expenses[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/expenses/stats?page=121&limit=500", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[stats.Result](t, rec)
	assert.Empty(t, res.Recent.Expenses)
	assert.Equal(t, 121, res.Recent.Pagination.CurrentPage)
	assert.Equal(t, 12, res.Recent.Pagination.TotalPages, "limit is capped at 100")
}

func TestStats_SeesWritesImmediately(t *testing.T) {
	ts := newTestServer(t)
	food := ts.createCategory(t, "Food")

	read := func() string {
		rec := ts.do(t, http.MethodGet, "/api/expenses/summary", nil, true)
		require.Equal(t, http.StatusOK, rec.Code)
		return decode[stats.Totals](t, rec).Daily.String()
	}
	assert.Equal(t, "0", read())

	rec := ts.do(t, http.MethodPost, "/api/expenses", map[string]string{"amount": "7.25", "categoryId": food.ID}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "7.25", read())
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/user/settings", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settingsView{
		FirstName: "Ada", LastName: "Lovelace", Currency: "USD",
		CurrencySymbol: "$", Timezone: "America/New_York", Country: "UK",
	}, decode[settingsView](t, rec))

	update := settingsView{
		FirstName: "Ada", LastName: "King", Currency: "eur",
		CurrencySymbol: "€", Timezone: "Europe/London", Country: "UK",
	}
	rec = ts.do(t, http.MethodPut, "/api/user/settings", update, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[settingsView](t, rec)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "King", got.LastName)

	update.Country = ""
	rec = ts.do(t, http.MethodPut, "/api/user/settings", update, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	update.Country = "UK"
	update.Timezone = "Mars/Olympus"
	rec = ts.do(t, http.MethodPut, "/api/user/settings", update, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackfillOrder(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/migration/add-category-order", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/migration/add-category-order", nil)
	req.Header.Set(AdminTokenHeader, "admin-secret")
	rec = httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"All categories already have order field","updated":0}`, rec.Body.String())
}

func TestBackfillOrder_DisabledWithoutAdminToken(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.AdminToken = "" })

	rec := ts.do(t, http.MethodPost, "/api/migration/add-category-order", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthReadyMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])

	rec = ts.do(t, http.MethodGet, "/ready", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rec)["status"])

	ts.do(t, http.MethodGet, "/api/categories", nil, false)
	rec = ts.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "# TYPE http_requests_total counter")
	assert.Contains(t, body, "http_client_errors_total 1")
	assert.Contains(t, body, "stats_cache_entries")
}

func TestReady_StoreDown(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.Store = failingPinger{} })

	rec := ts.do(t, http.MethodGet, "/ready", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", decode[map[string]any](t, rec)["status"])
}

func TestMiddlewareChain(t *testing.T) {
	t.Run("security headers and request id", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodGet, "/health", nil, false)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("suspicious request blocked", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodGet, "/api/categories?q=%3Cscript%3E", nil, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Bad request", decode[errorBody](t, rec).Error)
	})

	t.Run("rate limit", func(t *testing.T) {
		ts := newTestServer(t, func(o *Options) { o.RateLimitRPM = 2 })
		for range 2 {
			assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil, false).Code)
		}
		rec := ts.do(t, http.MethodGet, "/health", nil, false)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Equal(t, "Too many requests", decode[errorBody](t, rec).Error)
	})

	t.Run("unknown route", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(t, http.MethodGet, "/api/nope", nil, false)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestShutdown_Idempotent(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.srv.Shutdown(context.Background()))
	require.NoError(t, ts.srv.Shutdown(context.Background()))
}
