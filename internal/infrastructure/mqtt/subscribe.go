package mqtt

import (
	"fmt"
	"strings"
)

// Subscribe registers handler for topic, which may use the + and #
// wildcards but must lie under the client's topic prefix. HubLink only
// listens on its own tree, normally Topics.AllAccessoryCommands.
//
// The subscription is remembered and replayed after every reconnect, so
// callers subscribe once at startup. Handlers run on paho's delivery
// goroutine with panic recovery; see MessageHandler.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	case !c.ownsTopic(topic):
		return fmt.Errorf("%w: %s is outside %s/", ErrForeignTopic, topic, c.topics.Prefix)
	case !c.IsConnected():
		return ErrNotConnected
	}

	sub := subscription{topic: topic, qos: qos, handler: handler}
	c.remember(sub)

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if err := awaitToken(token, ErrSubscribeFailed); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// ownsTopic reports whether topic lies under the configured prefix.
func (c *Client) ownsTopic(topic string) bool {
	return c.topics.Prefix != "" && strings.HasPrefix(topic, c.topics.Prefix+"/")
}

// remember records sub for replay on reconnect.
func (c *Client) remember(sub subscription) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.subscriptions == nil {
		c.subscriptions = make(map[string]subscription)
	}
	c.subscriptions[sub.topic] = sub
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.subscriptions, topic)
}

// remembered returns the subscriptions to replay.
func (c *Client) remembered() []subscription {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	return subs
}
