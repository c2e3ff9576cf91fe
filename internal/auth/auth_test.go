package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef-test"

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, PasswordCost, cost)

	assert.NoError(t, CheckPassword(hash, "hunter22"))
	assert.ErrorIs(t, CheckPassword(hash, "hunter23"), ErrInvalidCredentials)
	assert.Error(t, CheckPassword("not-a-hash", "hunter22"))
}

func newTestTokens(now time.Time) *Tokens {
	tk := NewTokens(testSecret, time.Hour)
	tk.now = func() time.Time { return now }
	return tk
}

func TestTokens_RoundTrip(t *testing.T) {
	tk := NewTokens(testSecret, time.Hour)

	raw, err := tk.Issue(Principal{UserID: "u1", Email: "ada@example.com"})
	require.NoError(t, err)

	p, err := tk.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "u1", Email: "ada@example.com"}, p)
}

func TestTokens_Expiry(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	raw, err := newTestTokens(issued).Issue(Principal{UserID: "u1"})
	require.NoError(t, err)

	_, err = newTestTokens(issued.Add(59 * time.Minute)).Parse(raw)
	assert.NoError(t, err)

	_, err = newTestTokens(issued.Add(61 * time.Minute)).Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_Rejects(t *testing.T) {
	tk := NewTokens(testSecret, time.Hour)
	other := NewTokens("another-secret-value", time.Hour)

	forged, err := other.Issue(Principal{UserID: "u1"})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": "u1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"wrong secret": forged,
		"alg none":     unsigned,
		"garbage":      "abc.def.ghi",
		"empty":        "",
	} {
		_, err := tk.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestMiddleware(t *testing.T) {
	tk := NewTokens(testSecret, time.Hour)
	raw, err := tk.Issue(Principal{UserID: "u1", Email: "ada@example.com"})
	require.NoError(t, err)

	var got Principal
	h := tk.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: raw}) }, http.StatusNoContent},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+raw) }, http.StatusNoContent},
		{"bad bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+raw) }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = Principal{}
			req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
				return
			}
			assert.Equal(t, "u1", got.UserID)
		})
	}
}

func TestCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "abc", time.Hour, true)
	ClearCookie(rec, false)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.Equal(t, -1, cookies[1].MaxAge)
}
