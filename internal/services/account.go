package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendlog/internal/auth"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/store"
)

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Country   string `json:"country"`
	Currency  string `json:"currency"`
	Timezone  string `json:"timezone"`
}

type SettingsRequest struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Currency       string `json:"currency"`
	CurrencySymbol string `json:"currencySymbol"`
	Timezone       string `json:"timezone"`
	Country        string `json:"country"`
}

type LoginResult struct {
	Token string
	User  core.UserProfile
}

// AccountService registers users, authenticates them and manages their settings.
type AccountService struct {
	users  store.UserStore
	tokens *auth.Tokens
	notifier
	now func() time.Time
}

func NewAccountService(users store.UserStore, tokens *auth.Tokens, cache Invalidator) *AccountService {
	return &AccountService{
		users:    users,
		tokens:   tokens,
		notifier: notifier{cache: cache},
		now:      time.Now,
	}
}

func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (core.UserProfile, error) {
	if anyBlank(req.FirstName, req.LastName, req.Email, req.Password, req.Country, req.Currency, req.Timezone) {
		return core.UserProfile{}, fmt.Errorf("%w: all fields are required", core.ErrMissingField)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	profile := core.UserProfile{
		ID:             uuid.NewString(),
		Email:          core.NormalizeEmail(req.Email),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Country:        strings.TrimSpace(req.Country),
		Currency:       currency,
		CurrencySymbol: core.CurrencySymbol(currency),
		Timezone:       strings.TrimSpace(req.Timezone),
		CreatedAt:      s.now().UTC(),
	}
	if err := profile.Validate(); err != nil {
		return core.UserProfile{}, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return core.UserProfile{}, err
	}

	if err := s.users.CreateUser(ctx, store.User{UserProfile: profile, PasswordHash: hash}); err != nil {
		return core.UserProfile{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User registered",
		applog.FieldComponent, applog.ComponentAuth,
		applog.FieldUserID, profile.ID)
	return profile, nil
}

// Login checks the credentials and issues a session token. Unknown emails and
// wrong passwords both return auth.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if anyBlank(email, password) {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", core.ErrMissingField)
	}

	u, err := s.users.GetUserByEmail(ctx, core.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}

	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return LoginResult{}, err
	}

	token, err := s.tokens.Issue(auth.Principal{UserID: u.ID, Email: u.Email})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: u.UserProfile}, nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (core.UserProfile, error) {
	p, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get user: %w", err)
	}
	return p, nil
}

// UpdateSettings replaces the editable profile fields; all of them are required.
func (s *AccountService) UpdateSettings(ctx context.Context, userID string, req SettingsRequest) (core.UserProfile, error) {
	if anyBlank(req.FirstName, req.LastName, req.Currency, req.CurrencySymbol, req.Timezone, req.Country) {
		return core.UserProfile{}, fmt.Errorf("%w: first name, last name, currency, currency symbol, timezone, and country are required", core.ErrMissingField)
	}

	p, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get user: %w", err)
	}

	p.FirstName = strings.TrimSpace(req.FirstName)
	p.LastName = strings.TrimSpace(req.LastName)
	p.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	p.CurrencySymbol = strings.TrimSpace(req.CurrencySymbol)
	p.Timezone = strings.TrimSpace(req.Timezone)
	p.Country = strings.TrimSpace(req.Country)
	if err := p.Validate(); err != nil {
		return core.UserProfile{}, err
	}

	if err := s.users.UpdateProfile(ctx, p); err != nil {
		return core.UserProfile{}, fmt.Errorf("update profile: %w", err)
	}
	s.invalidate(userID)
	return p, nil
}

func anyBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
