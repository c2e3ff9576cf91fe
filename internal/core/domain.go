package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

const (
	// UncategorizedID groups expenses that carry no category.
	UncategorizedID      = "uncategorized"
	UncategorizedName    = "Uncategorized"
	DefaultCategoryColor = "#3B82F6"

	DefaultTimezone       = "America/New_York"
	DefaultCurrency       = "USD"
	DefaultCurrencySymbol = "$"

	MaxDescriptionLength  = 200
	MaxCategoryNameLength = 50
)

type (
	Period string

	Expense struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		Amount      decimal.Decimal `json:"amount"`
		CategoryID  string          `json:"categoryId"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	Category struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Name      string    `json:"name"`
		Color     string    `json:"color"`
		Order     int       `json:"order"`
		CreatedAt time.Time `json:"createdAt"`
	}

	UserProfile struct {
		ID             string    `json:"id"`
		Email          string    `json:"email"`
		FirstName      string    `json:"firstName"`
		LastName       string    `json:"lastName"`
		Country        string    `json:"country"`
		Currency       string    `json:"currency"`
		CurrencySymbol string    `json:"currencySymbol"`
		Timezone       string    `json:"timezone"`
		CreatedAt      time.Time `json:"createdAt"`
	}
)

// MarshalJSON renders Amount as a number.
func (e Expense) MarshalJSON() ([]byte, error) {
	type expense Expense
	return json.Marshal(struct {
		expense
		Amount json.Number `json:"amount"`
	}{expense(e), JSONAmount(e.Amount)})
}

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidPeriod       = errors.New("invalid period")
	ErrDescriptionTooLong  = errors.New("description too long")
	ErrInvalidCategoryName = errors.New("invalid category name")
	ErrInvalidColor        = errors.New("invalid color")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidTimezone     = errors.New("invalid timezone")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrMissingField        = errors.New("missing required field")
	ErrMissingOwner        = errors.New("missing owner")
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ParsePeriod maps an empty selector to daily and rejects anything unknown.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodDaily, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// GroupID returns the category the expense is aggregated under.
func (e Expense) GroupID() string {
	if e.CategoryID == "" {
		return UncategorizedID
	}
	return e.CategoryID
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrMissingOwner
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(e.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w (max %d characters)", ErrDescriptionTooLong, MaxDescriptionLength)
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrMissingOwner
	}
	name := strings.TrimSpace(c.Name)
	if name == "" || len(name) > MaxCategoryNameLength {
		return ErrInvalidCategoryName
	}
	if !colorPattern.MatchString(c.Color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, c.Color)
	}
	return nil
}

// Validate checks a profile as stored; required-field checks for requests happen in the services.
func (p UserProfile) Validate() error {
	if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, p.Email)
	}
	if _, err := LoadLocation(p.Timezone); err != nil {
		return err
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, p.Currency)
	}
	return nil
}

// FullName joins the name parts the way the profile is displayed.
func (p UserProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Location returns the profile's zone, or the named fallback when the stored zone is unusable.
func (p UserProfile) Location(fallback string) *time.Location {
	if loc, err := LoadLocation(p.Timezone); err == nil {
		return loc
	}
	if loc, err := LoadLocation(fallback); err == nil {
		return loc
	}
	return time.UTC
}

// LoadLocation wraps time.LoadLocation, rejecting the empty name which would otherwise mean UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
