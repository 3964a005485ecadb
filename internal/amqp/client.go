package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"finanzas/internal/core"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures          = 5
	openTimeout          = 30 * time.Second
	maxBackoff           = 30 * time.Second
	maxReconnectAttempts = 5
	publishTimeout       = 5 * time.Second
)

// Queues names the three durable queues bound to the exchange. Each queue
// is bound with its own name as routing key. Empty names are skipped.
type Queues struct {
	Inbound  string
	Outbound string
	Events   string
}

func (q Queues) names() []string {
	var out []string
	for _, name := range []string{q.Inbound, q.Outbound, q.Events} {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

type Client struct {
	url          string
	exchangeName string
	queues       Queues

	mu          sync.RWMutex
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	lastFailure time.Time

	state        int32
	failureCount int64
}

func NewClient(url, exchangeName string, queues Queues) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queues:       queues,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()
	return nil
}

func (c *Client) setup(channel *amqp091.Channel) error {
	err := channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, name := range c.queues.names() {
		if _, err := channel.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}

		// direct exchange: routing key is the queue name
		if err := channel.QueueBind(name, name, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", name, err)
		}
	}
	return nil
}

// reconnect drops the current connection and dials again with exponential
// backoff until it succeeds, ctx ends or the attempts run out.
func (c *Client) reconnect(ctx context.Context) error {
	c.closeConn()

	var err error
	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		if err = c.connect(); err == nil {
			slog.InfoContext(ctx, "Reconnected to AMQP", "attempt", attempt+1)
			return nil
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP reconnect failed",
			"attempt", attempt+1,
			"retry_in", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("reconnect after %d attempts: %w", maxReconnectAttempts, err)
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}

	c.mu.RLock()
	last := c.lastFailure
	c.mu.RUnlock()

	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)

	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			slog.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// publish sends body to routingKey, reconnecting once on a connection error.
func (c *Client) publish(ctx context.Context, routingKey string, body []byte, headers amqp091.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, not publishing to %s", routingKey)
	}

	err := c.tryPublish(ctx, routingKey, body, headers)
	if err != nil && isConnectionError(err) {
		if rerr := c.reconnect(ctx); rerr == nil {
			err = c.tryPublish(ctx, routingKey, body, headers)
		}
	}
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

func (c *Client) tryPublish(ctx context.Context, routingKey string, body []byte, headers amqp091.Table) error {
	channel := c.currentChannel()
	if channel == nil {
		return amqp091.ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         body,
		},
	)
}

// PublishChatMessage queues an inbound chat line, as the chat gateway would.
func (c *Client) PublishChatMessage(ctx context.Context, msg *ChatMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queues.Inbound, body, nil); err != nil {
		return err
	}

	slog.DebugContext(ctx, "Published chat message",
		"user_id", msg.UserID,
		"chat_id", msg.ChatID,
		"queue", c.queues.Inbound)
	return nil
}

// PublishReply queues a reply for the chat gateway. botID identifies the
// bot account that must deliver it.
func (c *Client) PublishReply(ctx context.Context, msg *ReplyMessage, botID string) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var headers amqp091.Table
	if botID != "" {
		headers = amqp091.Table{"bot_id": botID}
	}
	if err := c.publish(ctx, c.queues.Outbound, body, headers); err != nil {
		return err
	}

	slog.DebugContext(ctx, "Published reply",
		"chat_id", msg.ChatID,
		"document", msg.Document != nil,
		"queue", c.queues.Outbound)
	return nil
}

// PublishLedgerEvent announces a recorded, edited or deleted movement.
func (c *Client) PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid ledger event: %w", err)
	}
	body, err := NewLedgerEventMessage(ev).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queues.Events, body, nil); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published ledger event",
		"action", ev.Action,
		"movement_id", ev.Movement.ID,
		"exchange", c.exchangeName,
		"queue", c.queues.Events)
	return nil
}

// ConsumeChatMessages hands inbound chat lines to handler, at most
// concurrency at a time.
func (c *Client) ConsumeChatMessages(ctx context.Context, concurrency int, handler func(context.Context, *ChatMessage) error) error {
	return consume(ctx, c, c.queues.Inbound, concurrency, ChatMessageFromJSON, handler)
}

// ConsumeReplies hands outbound replies to handler, one at a time.
func (c *Client) ConsumeReplies(ctx context.Context, handler func(context.Context, *ReplyMessage) error) error {
	return consume(ctx, c, c.queues.Outbound, 1, ReplyMessageFromJSON, handler)
}

// ConsumeLedgerEvents hands ledger events to handler, at most concurrency
// at a time.
func (c *Client) ConsumeLedgerEvents(ctx context.Context, concurrency int, handler func(context.Context, core.LedgerEvent) error) error {
	decode := func(data []byte) (core.LedgerEvent, error) {
		msg, err := LedgerEventMessageFromJSON(data)
		if err != nil {
			return core.LedgerEvent{}, err
		}
		return msg.ToEvent()
	}
	return consume(ctx, c, c.queues.Events, concurrency, decode, handler)
}

func consume[T any](ctx context.Context, c *Client, queue string, concurrency int, decode func([]byte) (T, error), handler func(context.Context, T) error) error {
	if concurrency < 1 {
		concurrency = 1
	}
	channel := c.currentChannel()
	if channel == nil {
		return amqp091.ErrClosed
	}

	if err := channel.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	msgs, err := channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming", "queue", queue, "concurrency", concurrency)

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed for queue %s", queue)
			}
			g.Go(func() error {
				handleDelivery(ctx, queue, delivery, decode, handler)
				return nil
			})
		}
	}
}

// handleDelivery acks on success, drops undecodable bodies and requeues on
// handler failure.
func handleDelivery[T any](ctx context.Context, queue string, d amqp091.Delivery, decode func([]byte) (T, error), handler func(context.Context, T) error) {
	msg, err := decode(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode message", "queue", queue, "error", err)
		d.Nack(false, false) // reject and don't requeue
		return
	}

	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle message", "queue", queue, "error", err)
		d.Nack(false, true) // reject and requeue
		return
	}

	d.Ack(false)
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
