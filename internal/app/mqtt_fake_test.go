package app

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// pendingToken never completes.
type pendingToken struct{ done chan struct{} }

func (t pendingToken) Wait() bool                     { <-t.done; return true }
func (t pendingToken) WaitTimeout(time.Duration) bool { return false }
func (t pendingToken) Error() error                   { return nil }
func (t pendingToken) Done() <-chan struct{}          { return t.done }

type publishedMessage struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes. Other mqtt.Client methods are not used.
type fakeClient struct {
	mqtt.Client

	token mqtt.Token // returned by Publish, doneToken{} when nil

	mu   sync.Mutex
	msgs []publishedMessage
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, publishedMessage{topic: topic, retained: retained, payload: payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return doneToken{}
}

func (c *fakeClient) messages(topic string) []publishedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []publishedMessage
	for _, m := range c.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}
