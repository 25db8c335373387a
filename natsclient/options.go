package natsclient

import (
	"fmt"
	"log/slog"
	"time"
)

// ClientOption configures a Client at construction
type ClientOption func(*Client) error

// duration validates d against min before storing it
func duration(name string, d, min time.Duration, dst func(*Client) *time.Duration) ClientOption {
	return func(c *Client) error {
		if d < min {
			return fmt.Errorf("%s %s is below %s", name, d, min)
		}
		*dst(c) = d
		return nil
	}
}

// WithMaxReconnects bounds automatic reconnects; -1 retries forever
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) error {
		if n < -1 {
			return fmt.Errorf("max reconnects %d is below -1", n)
		}
		c.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the pause between reconnect attempts
func WithReconnectWait(d time.Duration) ClientOption {
	return duration("reconnect wait", d, 0, func(c *Client) *time.Duration { return &c.reconnectWait })
}

// WithPingInterval sets how often the server is pinged
func WithPingInterval(d time.Duration) ClientOption {
	return duration("ping interval", d, time.Millisecond, func(c *Client) *time.Duration { return &c.pingInterval })
}

// WithTimeout sets the dial timeout
func WithTimeout(d time.Duration) ClientOption {
	return duration("timeout", d, time.Millisecond, func(c *Client) *time.Duration { return &c.timeout })
}

// WithDrainTimeout bounds how long Close drains subscriptions
func WithDrainTimeout(d time.Duration) ClientOption {
	return duration("drain timeout", d, time.Millisecond, func(c *Client) *time.Duration { return &c.drainTimeout })
}

// WithName sets the connection name shown by the server
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithCredentials authenticates with user and password
func WithCredentials(user, password string) ClientOption {
	return func(c *Client) error {
		c.username, c.password = user, password
		return nil
	}
}

// WithToken authenticates with a token
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithLogger replaces the client logger. Nil is ignored.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger.With("subsystem", "nats")
		}
		return nil
	}
}

// WithDisconnectCallback runs fn whenever the connection drops
func WithDisconnectCallback(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.onDisconnect = fn
		return nil
	}
}

// WithReconnectCallback runs fn whenever the connection is restored
func WithReconnectCallback(fn func()) ClientOption {
	return func(c *Client) error {
		c.onReconnect = fn
		return nil
	}
}
