package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for a topic pattern. The daemon itself
// only publishes; subscribing exists for consumers of the discovery
// stream, e.g. "myhome/discovery/+/+" for every gateway's events or
// "myhome/#" for everything.
//
// Handlers run on paho's goroutines and should not block. The
// subscription is tracked and replayed after a reconnect.
//
// Returns ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or
// ErrSubscribeFailed.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Track first so a reconnect that races the broker ack still
	// restores the topic; untrack on failure below.
	c.subMu.Lock()
	c.subscriptions[topic] = subscription{
		topic:   topic,
		qos:     qos,
		handler: handler,
	}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.subMu.Lock()
		delete(c.subscriptions, topic)
		c.subMu.Unlock()
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.subMu.Lock()
		delete(c.subscriptions, topic)
		c.subMu.Unlock()
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}
