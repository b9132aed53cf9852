package sensorbridge

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"studyhall-backend/config"
)

const disconnectQuiesceMs = 250

// Client is a connected MQTT subscription feeding a Bridge.
type Client struct {
	client mqtt.Client
	topic  string
	log    *zap.Logger
}

// Connect dials the broker and subscribes cfg.Topic, handing every message to
// bridge. Messages are processed with ctx until Disconnect.
func Connect(ctx context.Context, cfg config.MQTTConfig, bridge *Bridge, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if err := bridge.HandleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
			log.Warn("dropping sensor message", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	}
	// Resubscribe after every (re)connect since the session is clean.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(cfg.Topic, cfg.QoS, handler); token.Wait() && token.Error() != nil {
			log.Error("failed to subscribe", zap.String("topic", cfg.Topic), zap.Error(token.Error()))
			return
		}
		log.Info("subscribed", zap.String("topic", cfg.Topic))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Client{client: client, topic: cfg.Topic, log: log}, nil
}

// Disconnect unsubscribes and closes the connection.
func (c *Client) Disconnect() {
	if token := c.client.Unsubscribe(c.topic); token.WaitTimeout(time.Second) && token.Error() != nil {
		c.log.Warn("failed to unsubscribe", zap.Error(token.Error()))
	}
	c.client.Disconnect(disconnectQuiesceMs)
}

// IsConnected reports the broker connection state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
