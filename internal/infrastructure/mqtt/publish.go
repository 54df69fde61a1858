package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outgoing payloads at 1MB, in line with common
// broker limits. Discovery events are a few hundred bytes; anything
// near this limit is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends one message. Discovery events go out with qos from the
// config and retained=false; lifecycle status topics are retained so a
// late subscriber sees the current state.
//
//	topic := mqtt.Topics{}.DiscoveryDevice("00:03:50:01:aa:bb")
//	err := client.Publish(topic, payload, 1, false)
//
// Returns ErrInvalidTopic, ErrInvalidQoS or ErrPublishFailed on bad
// input and ErrNotConnected when the broker is away; the event sink
// treats all of these as droppable.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
