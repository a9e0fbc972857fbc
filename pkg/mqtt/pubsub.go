// Package mqtt wraps the paho client for the profiler: raw report
// publishing, control subscriptions that survive reconnects, and an
// online/offline presence topic.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connTimeout    = 10 * time.Second
	reconnInterval = time.Minute
	disconnQuiesce = 250
)

var (
	errPublishTimeout     = errors.New("failed to publish due to timeout reached")
	errSubscribeTimeout   = errors.New("failed to subscribe due to timeout reached")
	errUnsubscribeTimeout = errors.New("failed to unsubscribe due to timeout reached")
	errConnectTimeout     = errors.New("timeout reached while connecting to MQTT broker")
	errConnect            = errors.New("failed to connect to MQTT broker")
	errEmptyTopic         = errors.New("empty topic")
	errEmptyID            = errors.New("empty ID")
)

const (
	aliveTopicTemplate = "m/%s/c/%s/control/profiler/alive"
	statusTemplate     = `{"status":"%s","instance_id":"%s"}`
)

// Handler receives a control message. Empty payloads arrive as a nil map.
type Handler func(topic string, msg map[string]any) error

// PubSub publishes raw []byte payloads as-is and any other value as JSON.
type PubSub interface {
	Publish(ctx context.Context, topic string, msg any) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect(ctx context.Context) error
}

type pubsub struct {
	client     mqtt.Client
	qos        byte
	timeout    time.Duration
	id         string
	aliveTopic string
	logger     *slog.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

// NewPubSub connects to the broker at url. When channelID is set the client
// announces itself on the channel's alive topic and leaves an offline will.
func NewPubSub(url string, qos byte, id, username, password, domainID, channelID string, timeout time.Duration, logger *slog.Logger) (PubSub, error) {
	if id == "" {
		return nil, errEmptyID
	}

	ps := &pubsub{
		qos:     qos,
		timeout: timeout,
		id:      id,
		logger:  logger,
		subs:    make(map[string]Handler),
	}
	if channelID != "" {
		ps.aliveTopic = fmt.Sprintf(aliveTopicTemplate, domainID, channelID)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(url).
		SetClientID(id).
		SetUsername(username).
		SetPassword(password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connTimeout).
		SetMaxReconnectInterval(reconnInterval).
		SetOnConnectHandler(ps.onConnect).
		SetConnectionLostHandler(ps.onConnectionLost).
		SetReconnectingHandler(ps.onReconnecting)
	if ps.aliveTopic != "" {
		opts.SetWill(ps.aliveTopic, ps.status("offline"), 0, false)
	}

	ps.client = mqtt.NewClient(opts)

	token := ps.client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, errConnectTimeout
	}
	if err := token.Error(); err != nil {
		return nil, errors.Join(errConnect, err)
	}

	return ps, nil
}

func (ps *pubsub) Publish(ctx context.Context, topic string, msg any) error {
	if topic == "" {
		return errEmptyTopic
	}

	var data []byte
	switch m := msg.(type) {
	case []byte:
		data = m
	default:
		var err error
		if data, err = json.Marshal(msg); err != nil {
			return err
		}
	}

	return ps.wait(ctx, ps.client.Publish(topic, ps.qos, false, data), errPublishTimeout)
}

// Subscribe registers handler for topic. The subscription is renewed after
// every reconnect, since sessions are clean.
func (ps *pubsub) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if topic == "" {
		return errEmptyTopic
	}

	if err := ps.wait(ctx, ps.client.Subscribe(topic, ps.qos, ps.mqttHandler(handler)), errSubscribeTimeout); err != nil {
		return err
	}

	ps.mu.Lock()
	ps.subs[topic] = handler
	ps.mu.Unlock()

	return nil
}

func (ps *pubsub) Unsubscribe(ctx context.Context, topic string) error {
	if topic == "" {
		return errEmptyTopic
	}

	ps.mu.Lock()
	delete(ps.subs, topic)
	ps.mu.Unlock()

	return ps.wait(ctx, ps.client.Unsubscribe(topic), errUnsubscribeTimeout)
}

// Disconnect announces the client offline and closes the connection.
func (ps *pubsub) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ps.aliveTopic != "" {
		token := ps.client.Publish(ps.aliveTopic, 0, false, ps.status("offline"))
		token.WaitTimeout(ps.timeout)
	}
	ps.client.Disconnect(disconnQuiesce)

	return nil
}

// wait blocks until token completes, ctx ends or the client timeout passes,
// whichever comes first.
func (ps *pubsub) wait(ctx context.Context, token mqtt.Token, errTimeout error) error {
	timer := time.NewTimer(ps.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errTimeout
	}
}

func (ps *pubsub) onConnect(c mqtt.Client) {
	ps.logger.Info("MQTT connection established")

	if ps.aliveTopic != "" {
		c.Publish(ps.aliveTopic, 0, false, ps.status("online"))
	}

	ps.mu.Lock()
	subs := make(map[string]Handler, len(ps.subs))
	for topic, h := range ps.subs {
		subs[topic] = h
	}
	ps.mu.Unlock()

	for topic, h := range subs {
		token := c.Subscribe(topic, ps.qos, ps.mqttHandler(h))
		if !token.WaitTimeout(ps.timeout) || token.Error() != nil {
			ps.logger.Warn("failed to renew subscription", slog.String("topic", topic), slog.Any("error", token.Error()))
		}
	}
}

func (ps *pubsub) onConnectionLost(_ mqtt.Client, err error) {
	args := []any{}
	if err != nil {
		args = append(args, slog.Any("error", err))
	}

	ps.logger.Info("MQTT connection lost", args...)
}

func (ps *pubsub) onReconnecting(_ mqtt.Client, options *mqtt.ClientOptions) {
	args := []any{}
	if options != nil {
		args = append(args,
			slog.String("client_id", options.ClientID),
			slog.String("username", options.Username),
		)
	}

	ps.logger.Info("MQTT reconnecting", args...)
}

func (ps *pubsub) status(s string) string {
	return fmt.Sprintf(statusTemplate, s, ps.id)
}

func (ps *pubsub) mqttHandler(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		defer m.Ack()

		var msg map[string]any
		if len(m.Payload()) > 0 {
			if err := json.Unmarshal(m.Payload(), &msg); err != nil {
				ps.logger.Warn("failed to unmarshal control message", slog.String("topic", m.Topic()), slog.Any("error", err))

				return
			}
		}

		if err := h(m.Topic(), msg); err != nil {
			ps.logger.Warn("failed to handle control message", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
	}
}
