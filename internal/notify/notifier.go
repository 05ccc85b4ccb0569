// Package notify publishes save events to RabbitMQ so other processes
// (report builders, exporters) can react to state changes without
// polling the database.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"eltimer/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures = 3
	openTimeout = 30 * time.Second
)

// Notifier publishes StateSavedMessages to a direct exchange. Publish
// failures trip a circuit breaker so a dead broker cannot slow down
// every save.
type Notifier struct {
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewNotifier connects to the broker and declares the exchange, queue
// and binding.
func NewNotifier(url, exchangeName, queueName string, logger *log.Logger) (*Notifier, error) {
	n := &Notifier{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentNotifier),
		done:         make(chan struct{}),
	}
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Notifier) connect() error {
	conn, err := amqp091.Dial(n.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, n.exchangeName, n.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	n.mu.Lock()
	n.conn = conn
	n.channel = channel
	n.mu.Unlock()
	return nil
}

func setup(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = channel.QueueBind(
		queueName,    // queue name
		queueName,    // routing key (same as queue name for direct exchange)
		exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// StateSaved publishes a save event. When the circuit is open the
// message is dropped with an error instead of waiting on the broker.
func (n *Notifier) StateSaved(ctx context.Context, companyID string, revision int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.isCircuitOpen() {
		return errors.New("circuit breaker is open, dropping message")
	}

	msg := NewStateSavedMessage(companyID, revision)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n.mu.Lock()
	channel := n.channel
	n.mu.Unlock()
	if channel == nil {
		n.recordFailure()
		return errors.New("notifier not connected")
	}

	err = channel.PublishWithContext(
		ctx,
		n.exchangeName, // exchange
		n.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		n.recordFailure()
		if isConnectionError(err) {
			go n.reconnect()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	n.recordSuccess()
	n.logger.InfoContext(ctx, "published state saved message",
		log.FieldCompanyID, companyID,
		log.FieldRevision, revision)
	return nil
}

// reconnect retries the broker connection with exponential backoff
// until it succeeds or the notifier is closed.
func (n *Notifier) reconnect() {
	for attempt := 0; ; attempt++ {
		select {
		case <-n.done:
			return
		case <-time.After(exponentialBackoff(attempt)):
		}
		if err := n.connect(); err != nil {
			n.logger.Warn("reconnect failed", log.FieldError, err.Error())
			continue
		}
		select {
		case <-n.done:
			// Closed while dialing; don't leave the fresh connection behind.
			n.closeConnection()
		default:
			n.logger.Info("reconnected to broker")
		}
		return
	}
}

func (n *Notifier) isCircuitOpen() bool {
	switch atomic.LoadInt32(&n.state) {
	case StateOpen:
		n.mu.Lock()
		expired := time.Since(n.lastFailure) > openTimeout
		n.mu.Unlock()
		if expired {
			atomic.StoreInt32(&n.state, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (n *Notifier) recordSuccess() {
	atomic.StoreInt64(&n.failureCount, 0)
	atomic.StoreInt32(&n.state, StateClosed)
}

func (n *Notifier) recordFailure() {
	n.mu.Lock()
	n.lastFailure = time.Now()
	n.mu.Unlock()
	if atomic.AddInt64(&n.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&n.state, StateOpen)
	}
}

// Consume delivers StateSavedMessages to the handler until the context
// ends. Messages are acked on success; handler failures requeue the
// delivery, unparseable bodies are dropped.
func (n *Notifier) Consume(ctx context.Context, handler func(context.Context, *StateSavedMessage) error) error {
	n.mu.Lock()
	channel := n.channel
	n.mu.Unlock()
	if channel == nil {
		return errors.New("notifier not connected")
	}

	msgs, err := channel.Consume(
		n.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	n.logger.InfoContext(ctx, "consuming state saved messages", "queue", n.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			msg, err := StateSavedMessageFromJSON(delivery.Body)
			if err != nil {
				n.logger.ErrorContext(ctx, "unparseable message dropped", log.FieldError, err.Error())
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				n.logger.ErrorContext(ctx, "message handling failed",
					log.FieldError, err.Error(),
					log.FieldCompanyID, msg.CompanyID,
					log.FieldRevision, msg.Revision)
				delivery.Nack(false, true)
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (n *Notifier) Close() error {
	n.closeOnce.Do(func() { close(n.done) })
	return n.closeConnection()
}

func (n *Notifier) closeConnection() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channel != nil {
		n.channel.Close()
		n.channel = nil
	}
	if n.conn != nil {
		err := n.conn.Close()
		n.conn = nil
		return err
	}
	return nil
}

// exponentialBackoff returns the delay before a reconnect attempt,
// capped at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 30 * time.Second
	}
	return time.Duration(1<<attempt) * time.Second
}

// isConnectionError reports whether an error looks like a broken
// broker connection rather than a protocol or validation problem.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
