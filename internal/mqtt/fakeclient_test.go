package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient is a paho.Client that records publishes and subscriptions.
type fakeClient struct {
	mu         sync.Mutex
	open       bool
	publishErr error
	sent       []sent
	subs       map[string]paho.MessageHandler
}

func newFakeClient(open bool) *fakeClient {
	return &fakeClient{open: open, subs: map[string]paho.MessageHandler{}}
}

func (c *fakeClient) setOpen(v bool) {
	c.mu.Lock()
	c.open = v
	c.mu.Unlock()
}

func (c *fakeClient) messages() []sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sent(nil), c.sent...)
}

func (c *fakeClient) IsConnected() bool { return c.IsConnectionOpen() }

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
func (c *fakeClient) Connect() paho.Token {
	c.setOpen(true)
	return doneToken{}
}
func (c *fakeClient) Disconnect(uint) { c.setOpen(false) }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return doneToken{err: c.publishErr}
	}
	c.sent = append(c.sent, sent{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	c.subs[topic] = cb
	c.mu.Unlock()
	return doneToken{}
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return doneToken{}
}
func (c *fakeClient) Unsubscribe(...string) paho.Token        { return doneToken{} }
func (c *fakeClient) AddRoute(string, paho.MessageHandler)    {}
func (c *fakeClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}
