package mqtt

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/light-orchestra/internal/command"
	"github.com/sweeney/light-orchestra/internal/logger"
	"github.com/sweeney/light-orchestra/internal/logic"
	"github.com/sweeney/light-orchestra/internal/metrics"
)

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Prefix   string
	Username string
	Password string

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	OutboxSize     int

	// Commands, if set, receives commands published to the commands topic.
	Commands *command.Mailbox
}

func (o Options) withDefaults() Options {
	if o.ClientID == "" {
		o.ClientID = "light-orchestra"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = DefaultOutboxSize
	}
	return o
}

// RealPublisher publishes to a broker. While the connection is down,
// messages are queued in an outbox and replayed after reconnecting.
type RealPublisher struct {
	client   paho.Client
	topics   Topics
	opts     Options
	out      *outbox
	connects atomic.Int32
}

// NewRealPublisher connects to the broker. If the broker does not answer
// within the connect timeout the publisher is still returned: paho keeps
// retrying in the background and messages are queued until it connects.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	o = o.withDefaults()
	if o.Broker == "" {
		return nil, errors.New("mqtt broker address is empty")
	}

	p := newPublisher(nil, o)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Logger().Warnw("mqtt connection lost", "error", err)
		})
	if o.Username != "" {
		opts.SetUsername(o.Username).SetPassword(o.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		logger.Logger().Warnw("mqtt broker not reachable yet, queueing messages", "broker", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func newPublisher(client paho.Client, o Options) *RealPublisher {
	o = o.withDefaults()
	return &RealPublisher{
		client: client,
		topics: TopicsFor(o.Prefix),
		opts:   o,
		out:    newOutbox(o.OutboxSize),
	}
}

// Publish sends a trigger event at QoS 0.
func (p *RealPublisher) Publish(event logic.TriggerEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(pending{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a lifecycle event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(pending{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the client is connected.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Queued returns how many messages wait for the connection.
func (p *RealPublisher) Queued() int {
	return p.out.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

func (p *RealPublisher) publish(msg pending) error {
	if !p.client.IsConnectionOpen() {
		p.out.push(msg)
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.opts.PublishTimeout) {
		metrics.MQTTPublishErrors.Inc()
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		metrics.MQTTPublishErrors.Inc()
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect runs on every (re)connection: it subscribes to commands,
// replays the outbox and announces a reconnect.
func (p *RealPublisher) onConnect(c paho.Client) {
	n := p.connects.Add(1)
	log := logger.Logger()
	log.Infow("mqtt connected", "broker", p.opts.Broker, "connects", n)

	if p.opts.Commands != nil {
		token := c.Subscribe(p.topics.Commands, 1, CommandHandler(p.opts.Commands))
		if token.WaitTimeout(p.opts.PublishTimeout) && token.Error() != nil {
			log.Warnw("mqtt subscribe failed", "topic", p.topics.Commands, "error", token.Error())
		}
	}

	queued := p.out.drain()
	for i, msg := range queued {
		if err := p.publish(msg); err != nil {
			log.Warnw("mqtt replay failed", "error", err, "remaining", len(queued)-i)
			p.out.requeue(queued[i:])
			break
		}
	}
	if len(queued) > 0 {
		log.Infow("mqtt outbox replayed", "messages", len(queued))
	}

	if n > 1 {
		_ = p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
	}
}

// CommandHandler feeds every received message into mb as a parsed command.
func CommandHandler(mb *command.Mailbox) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		c := command.ParsePayload(msg.Payload())
		c.Source = command.SourceMQTT
		logger.Logger().Debugw("mqtt command", "topic", msg.Topic(), "command", c.String())
		mb.Offer(c)
	}
}
