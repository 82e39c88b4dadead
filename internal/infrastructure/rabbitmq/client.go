package rabbitmq

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"purchases/internal/config"
)

const maxReconnectDelay = 30 * time.Second

var errClosed = errors.New("rabbitmq: client closed")

type Client struct {
	cfg        config.MessagingConfig
	logger     *zap.Logger
	dial       func(url string) (*amqp.Connection, error)
	connection *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	isClosing  bool
	closed     chan struct{}
}

func NewClient(cfg config.MessagingConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		dial:   amqp.Dial,
		closed: make(chan struct{}),
	}
}

// Connect dials the broker, retrying RetryCount times, and declares the
// durable topic exchange events are published to.
func (c *Client) Connect() error {
	attempts := c.cfg.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = c.connectOnce(); err == nil {
			return nil
		}
		c.logger.Warn("rabbitmq connection failed",
			zap.Int("attempt", i+1), zap.Int("maxAttempts", attempts), zap.Error(err))
		if i < attempts-1 && !c.sleep(c.cfg.RetryDelay) {
			break
		}
	}

	return fmt.Errorf("connecting to rabbitmq: %w", err)
}

func (c *Client) connectOnce() error {
	conn, err := c.dial(c.cfg.URL)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening rabbitmq channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		c.cfg.Exchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declaring exchange %s: %w", c.cfg.Exchange, err)
	}

	c.mu.Lock()
	if c.isClosing {
		c.mu.Unlock()
		ch.Close()
		conn.Close()
		return errClosed
	}
	c.connection = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to rabbitmq", zap.String("exchange", c.cfg.Exchange))
	go c.watch(conn)
	return nil
}

func (c *Client) watch(conn *amqp.Connection) {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	err, ok := <-closed
	if !ok || c.closing() {
		return
	}

	c.logger.Warn("rabbitmq connection lost, reconnecting", zap.Error(err))
	c.reconnect()
}

// reconnect keeps dialing with a doubling delay until a connection is
// established or the client is closed.
func (c *Client) reconnect() {
	delay := c.cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	for attempt := 1; ; attempt++ {
		if !c.sleep(delay) {
			return
		}
		err := c.connectOnce()
		if err == nil {
			return
		}
		if c.closing() {
			return
		}
		c.logger.Error("rabbitmq reconnect failed",
			zap.Int("attempt", attempt), zap.Duration("nextDelay", delay), zap.Error(err))

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// sleep waits for d and reports false when the client was closed meanwhile.
func (c *Client) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.closed:
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) closing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isClosing
}

func (c *Client) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connection != nil && !c.connection.IsClosed()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosing {
		return nil
	}
	c.isClosing = true
	close(c.closed)

	var closeErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			closeErr = fmt.Errorf("closing channel: %w", err)
		}
	}
	if c.connection != nil {
		if err := c.connection.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("closing connection: %w", err)
		}
	}
	return closeErr
}
