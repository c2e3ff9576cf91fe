package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/core"
)

// EventType names the change an Event describes.
type EventType string

const (
	EventExpenseCreated  EventType = "expense.created"
	EventExpenseDeleted  EventType = "expense.deleted"
	EventCategoryDeleted EventType = "category.deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseDeleted, EventCategoryDeleted:
		return true
	}
	return false
}

// Event is the message mirrored to downstream consumers. ID is the expense id for
// expense events and the category id for category.deleted.
type Event struct {
	Type         EventType       `json:"type"`
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	UserEmail    string          `json:"userEmail,omitempty"`
	Timezone     string          `json:"timezone,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	CategoryID   string          `json:"categoryId,omitempty"`
	CategoryName string          `json:"categoryName,omitempty"`
	Description  string          `json:"description,omitempty"`
	Date         time.Time       `json:"date"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewExpenseCreated describes a stored expense together with the names the sheet row needs.
func NewExpenseCreated(e core.Expense, categoryName, userEmail string) *Event {
	return &Event{
		Type:         EventExpenseCreated,
		ID:           e.ID,
		UserID:       e.UserID,
		UserEmail:    userEmail,
		Amount:       e.Amount,
		CategoryID:   e.CategoryID,
		CategoryName: categoryName,
		Description:  e.Description,
		Date:         e.Date,
		Timestamp:    time.Now(),
	}
}

func NewExpenseDeleted(e core.Expense) *Event {
	return &Event{
		Type:      EventExpenseDeleted,
		ID:        e.ID,
		UserID:    e.UserID,
		Amount:    e.Amount,
		Date:      e.Date,
		Timestamp: time.Now(),
	}
}

func NewCategoryDeleted(userID, categoryID string) *Event {
	return &Event{
		Type:       EventCategoryDeleted,
		ID:         categoryID,
		UserID:     userID,
		CategoryID: categoryID,
		Timestamp:  time.Now(),
	}
}

// MarshalJSON renders Amount as a number.
func (e Event) MarshalJSON() ([]byte, error) {
	type event Event
	return json.Marshal(struct {
		event
		Amount json.Number `json:"amount"`
	}{event(e), core.JSONAmount(e.Amount)})
}

// ToJSON converts the message to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and checks a message body.
func EventFromJSON(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.ID == "" || ev.UserID == "" {
		return nil, errors.New("event is missing id or userId")
	}
	return &ev, nil
}
