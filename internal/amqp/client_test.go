package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"tracker/internal/core"
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
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{70, 30 * time.Second}, // no shift overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
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
		{"closed connection", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := isConnectionError(tt.err); result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func failPublish(c *Client) {
	c.breaker.Execute(func() (any, error) { return nil, amqp091.ErrClosed })
}

func TestClient_CircuitBreaker(t *testing.T) {
	t.Run("initial state is closed", func(t *testing.T) {
		client := &Client{breaker: newBreaker("test", openTimeout)}
		if st := client.breaker.State(); st != gobreaker.StateClosed {
			t.Errorf("State() = %v, want closed", st)
		}
	})

	t.Run("success resets consecutive failures", func(t *testing.T) {
		client := &Client{breaker: newBreaker("test", openTimeout)}
		for i := 0; i < maxFailures-1; i++ {
			failPublish(client)
		}
		client.breaker.Execute(func() (any, error) { return nil, nil })
		failPublish(client)

		if st := client.breaker.State(); st != gobreaker.StateClosed {
			t.Errorf("State() = %v, want closed", st)
		}
	})

	t.Run("multiple failures open circuit", func(t *testing.T) {
		client := &Client{breaker: newBreaker("test", openTimeout)}
		for i := 0; i < maxFailures-1; i++ {
			failPublish(client)
		}
		if st := client.breaker.State(); st != gobreaker.StateClosed {
			t.Errorf("State() = %v below the threshold, want closed", st)
		}
		failPublish(client)

		if st := client.breaker.State(); st != gobreaker.StateOpen {
			t.Errorf("State() = %v, want open", st)
		}
	})

	t.Run("circuit transitions to half-open after timeout", func(t *testing.T) {
		client := &Client{breaker: newBreaker("test", 10*time.Millisecond)}
		for i := 0; i < maxFailures; i++ {
			failPublish(client)
		}
		time.Sleep(20 * time.Millisecond)

		if st := client.breaker.State(); st != gobreaker.StateHalfOpen {
			t.Errorf("State() = %v, want half-open", st)
		}

		failPublish(client)
		if st := client.breaker.State(); st != gobreaker.StateOpen {
			t.Errorf("State() = %v after a half-open failure, want open", st)
		}
	})
}

func sampleTransaction() core.Transaction {
	return core.Transaction{
		Concept:  "rent",
		Value:    decimal.RequireFromString("-500.50"),
		Date:     core.NewDate(2020, 1, 31),
		Category: "housing",
		Store:    true,
	}
}

func TestClient_PublishTransactionRecorded(t *testing.T) {
	t.Run("publish fails when circuit is open", func(t *testing.T) {
		client := &Client{exchangeName: "test_exchange", queueName: "test_queue", breaker: newBreaker("test", openTimeout)}
		for i := 0; i < maxFailures; i++ {
			failPublish(client)
		}

		err := client.PublishTransactionRecorded(context.Background(), sampleTransaction())
		if !errors.Is(err, gobreaker.ErrOpenState) {
			t.Errorf("want open circuit error, got: %v", err)
		}
	})

	t.Run("publish respects context cancellation", func(t *testing.T) {
		client := &Client{exchangeName: "test_exchange", queueName: "test_queue", breaker: newBreaker("test", openTimeout)}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishTransactionRecorded(ctx, sampleTransaction()); err != context.Canceled {
			t.Errorf("want context.Canceled, got: %v", err)
		}
	})
}

func TestTransactionRecordedMessage(t *testing.T) {
	msg := NewTransactionRecordedMessage(sampleTransaction())
	if msg.Value != "-500.5" || msg.Date != "2020-01-31" || msg.Timestamp.IsZero() {
		t.Fatalf("unexpected message %+v", msg)
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	for _, key := range []string{`"concept":"rent"`, `"value":"-500.5"`, `"date":"2020-01-31"`, `"category":"housing"`, `"store":true`, `"timestamp":`} {
		if !strings.Contains(string(body), key) {
			t.Errorf("JSON %s missing %s", body, key)
		}
	}

	decoded, err := TransactionRecordedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	tx, err := decoded.Transaction()
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	want := sampleTransaction()
	if tx.Concept != want.Concept || !tx.Value.Equal(want.Value) || !tx.Date.Equal(want.Date) || tx.Store != want.Store {
		t.Errorf("Transaction() = %+v, want %+v", tx, want)
	}
}

func TestTransactionRecordedMessage_InvalidJSON(t *testing.T) {
	for _, body := range []string{`{not json`, `{"value":"1"}`} {
		if _, err := TransactionRecordedMessageFromJSON([]byte(body)); err == nil {
			t.Errorf("FromJSON(%s) error = nil", body)
		}
	}
	bad := &TransactionRecordedMessage{Concept: "x", Value: "abc", Date: "2020-01-01"}
	if _, err := bad.Transaction(); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("Transaction() error = %v, want ErrInvalidAmount", err)
	}
}

type fakeDelivery struct {
	data    []byte
	acked   bool
	nacked  bool
	requeue bool
}

func (d *fakeDelivery) body() []byte { return d.data }

func (d *fakeDelivery) Ack(bool) error {
	d.acked = true
	return nil
}

func (d *fakeDelivery) Nack(_, requeue bool) error {
	d.nacked = true
	d.requeue = requeue
	return nil
}

func TestProcessDelivery(t *testing.T) {
	body, _ := NewTransactionRecordedMessage(sampleTransaction()).ToJSON()
	ctx := context.Background()

	t.Run("success acks", func(t *testing.T) {
		d := &fakeDelivery{data: body}
		var seen string
		process(ctx, d, func(_ context.Context, m *TransactionRecordedMessage) error {
			seen = m.Concept
			return nil
		})
		if !d.acked || d.nacked || seen != "rent" {
			t.Errorf("delivery = %+v, seen %q", d, seen)
		}
	})

	t.Run("handler failure requeues", func(t *testing.T) {
		d := &fakeDelivery{data: body}
		process(ctx, d, func(context.Context, *TransactionRecordedMessage) error {
			return errors.New("sheets down")
		})
		if d.acked || !d.nacked || !d.requeue {
			t.Errorf("delivery = %+v, want requeued nack", d)
		}
	})

	t.Run("poison message is dropped", func(t *testing.T) {
		d := &fakeDelivery{data: []byte("garbage")}
		called := false
		process(ctx, d, func(context.Context, *TransactionRecordedMessage) error {
			called = true
			return nil
		})
		if called || !d.nacked || d.requeue {
			t.Errorf("delivery = %+v, called %v", d, called)
		}
	})
}

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestInstallClosesReplacedConnection(t *testing.T) {
	old := &countingCloser{}
	c := &Client{conn: old, breaker: newBreaker("test", openTimeout)}

	fresh := &countingCloser{}
	c.install(fresh, nil)
	if old.closed != 1 {
		t.Errorf("replaced connection closed %d times, want 1", old.closed)
	}
	if fresh.closed != 0 {
		t.Errorf("current connection closed %d times, want 0", fresh.closed)
	}

	c.install(fresh, nil)
	if fresh.closed != 0 {
		t.Error("installing the same connection again must not close it")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if fresh.closed != 1 {
		t.Errorf("Close() closed the connection %d times, want 1", fresh.closed)
	}
}
