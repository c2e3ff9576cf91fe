package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlog/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"EOF error", errors.New("unexpected EOF"), true},
		{"broken pipe error", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConnectionError(tt.err))
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	t.Run("initial state is closed", func(t *testing.T) {
		assert.False(t, client.isCircuitOpen())
	})

	t.Run("record success resets state", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 3)
		atomic.StoreInt32(&client.state, StateOpen)

		client.recordSuccess()

		assert.False(t, client.isCircuitOpen())
		assert.Zero(t, atomic.LoadInt64(&client.failureCount))
		assert.Equal(t, StateClosed, atomic.LoadInt32(&client.state))
	})

	t.Run("multiple failures open circuit", func(t *testing.T) {
		client.recordSuccess()
		for range maxFailures {
			client.recordFailure()
		}
		assert.True(t, client.isCircuitOpen())
	})

	t.Run("circuit transitions to half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)

		assert.False(t, client.isCircuitOpen())
		assert.Equal(t, StateHalfOpen, atomic.LoadInt32(&client.state))
	})

	t.Run("failure while half-open reopens", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 0)
		atomic.StoreInt32(&client.state, StateHalfOpen)

		client.recordFailure()
		assert.True(t, client.isCircuitOpen())
	})
}

func TestClient_Publish(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}
	ev := NewCategoryDeleted("u1", "c1")

	t.Run("fails fast when circuit is open", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.Publish(context.Background(), ev)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Contains(t, err.Error(), "circuit breaker is open")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		client.recordSuccess()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, client.Publish(ctx, ev), context.Canceled)
	})
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func TestHandleDelivery(t *testing.T) {
	body, err := NewCategoryDeleted("u1", "c1").ToJSON()
	require.NoError(t, err)

	t.Run("ack on success", func(t *testing.T) {
		ack := &fakeAck{}
		var got *Event
		handleDelivery(context.Background(), HandlerFunc(func(_ context.Context, ev *Event) error {
			got = ev
			return nil
		}), body, ack)

		assert.True(t, ack.acked)
		require.NotNil(t, got)
		assert.Equal(t, EventCategoryDeleted, got.Type)
	})

	t.Run("requeue on handler error", func(t *testing.T) {
		ack := &fakeAck{}
		handleDelivery(context.Background(), HandlerFunc(func(context.Context, *Event) error {
			return errors.New("sheets unavailable")
		}), body, ack)

		assert.True(t, ack.nacked)
		assert.True(t, ack.requeued)
	})

	t.Run("drop malformed message", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		handleDelivery(context.Background(), HandlerFunc(func(context.Context, *Event) error {
			called = true
			return nil
		}), []byte(`{"type":"expense.updated","id":"x","userId":"u"}`), ack)

		assert.False(t, called)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})
}

func TestEvent_JSON(t *testing.T) {
	date := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)
	exp := core.Expense{
		ID:          "e1",
		UserID:      "u1",
		Amount:      decimal.RequireFromString("12.50"),
		CategoryID:  "c1",
		Description: "lunch",
		Date:        date,
	}

	ev := NewExpenseCreated(exp, "Food", "ada@example.com")
	assert.False(t, ev.Timestamp.IsZero())

	body, err := ev.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"amount":12.5`)
	assert.Contains(t, string(body), `"type":"expense.created"`)

	parsed, err := EventFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, "Food", parsed.CategoryName)
	assert.Equal(t, "ada@example.com", parsed.UserEmail)
	assert.True(t, parsed.Amount.Equal(exp.Amount))
	assert.True(t, parsed.Date.Equal(date))
}

func TestEventFromJSON_Invalid(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"type":"expense.created","userId":"u1"}`,
		`{"type":"expense.created","id":"e1"}`,
		`{"type":"income.created","id":"e1","userId":"u1"}`,
	} {
		_, err := EventFromJSON([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestNewExpenseDeleted(t *testing.T) {
	ev := NewExpenseDeleted(core.Expense{ID: "e1", UserID: "u1", Amount: decimal.NewFromInt(3)})
	assert.Equal(t, EventExpenseDeleted, ev.Type)
	assert.Empty(t, ev.CategoryName)
}
