package hub

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"viera/internal/device"
	"viera/internal/logger"
	"viera/internal/metrics"
)

const mqttActionTimeout = 10 * time.Second

// MessageHandler receives the topic and payload of an inbound message
type MessageHandler func(topic string, payload []byte)

// MQTTClient is the broker surface the bridge needs, so it can be tested
// without a live broker
type MQTTClient interface {
	Subscribe(topic string, handler MessageHandler) error
	Publish(topic string, payload []byte, retain bool) error
	Close()
}

type pahoClient struct {
	cli    mqtt.Client
	logger zerolog.Logger
}

// DialMQTT connects to the broker described by cfg
func DialMQTT(cfg MQTTConfig) (MQTTClient, error) {
	log := logger.WithComponent("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Error().Err(err).Msg("MQTT connection lost")
	}

	cli := mqtt.NewClient(opts)
	if t := cli.Connect(); t.Wait() && t.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, t.Error())
	}

	return &pahoClient{cli: cli, logger: log}, nil
}

func (c *pahoClient) Subscribe(topic string, handler MessageHandler) error {
	t := c.cli.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	c.logger.Info().Str("topic", topic).Msg("MQTT subscribed")
	return nil
}

func (c *pahoClient) Publish(topic string, payload []byte, retain bool) error {
	t := c.cli.Publish(topic, 1, retain, payload)
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

func (c *pahoClient) Close() {
	c.cli.Disconnect(250)
}

// MQTTBridge accepts actions on <prefix>/<id>/set and publishes retained
// power states on <prefix>/<id>/state
type MQTTBridge struct {
	client  MQTTClient
	prefix  string
	devices *DeviceManager
	logger  zerolog.Logger
}

// NewMQTTBridge creates a bridge for devices on client
func NewMQTTBridge(client MQTTClient, prefix string, devices *DeviceManager) *MQTTBridge {
	return &MQTTBridge{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		devices: devices,
		logger:  logger.WithComponent("mqtt"),
	}
}

// Start subscribes to the set topics and starts publishing state changes
func (b *MQTTBridge) Start() error {
	if err := b.client.Subscribe(b.prefix+"/+/set", b.handleSet); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	b.devices.OnStateChange(b.PublishState)
	return nil
}

// Stop disconnects from the broker
func (b *MQTTBridge) Stop() {
	b.client.Close()
}

// StateTopic returns the state topic of a device
func (b *MQTTBridge) StateTopic(deviceID string) string {
	return b.prefix + "/" + deviceID + "/state"
}

// PublishState publishes the retained power state of a device
func (b *MQTTBridge) PublishState(deviceID, state string) {
	if state == device.StateUnknown {
		return
	}
	if err := b.client.Publish(b.StateTopic(deviceID), []byte(state), true); err != nil {
		b.logger.Error().Err(err).Str("device_id", deviceID).Msg("Failed to publish state")
		return
	}
	metrics.IncMQTT("out")
}

func (b *MQTTBridge) handleSet(topic string, payload []byte) {
	metrics.IncMQTT("in")

	deviceID, ok := b.deviceFromTopic(topic)
	if !ok {
		b.logger.Warn().Str("topic", topic).Msg("Ignoring message on unexpected topic")
		return
	}

	actionJSON, err := actionFromPayload(payload)
	if err != nil {
		b.logger.Warn().Err(err).Str("topic", topic).Msg("Ignoring malformed action")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mqttActionTimeout)
		defer cancel()

		response, err := b.devices.ProcessDeviceAction(ctx, deviceID, actionJSON)
		if err != nil {
			b.logger.Error().Err(err).Str("device_id", deviceID).Msg("MQTT action failed")
			return
		}
		if !response.Success {
			b.logger.Warn().Str("device_id", deviceID).Str("error", response.Error).Msg("MQTT action rejected")
		}
	}()
}

func (b *MQTTBridge) deviceFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		return "", false
	}
	deviceID, ok := strings.CutSuffix(rest, "/set")
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", false
	}
	return deviceID, true
}

// actionFromPayload accepts either a full action request or a bare action
// name such as "mute" or "power_status"
func actionFromPayload(payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if trimmed[0] == '{' {
		if _, err := device.ParseActionRequest(trimmed); err != nil {
			return nil, err
		}
		return trimmed, nil
	}

	action := strings.ToLower(string(trimmed))
	actionType := device.ActionTypeRemote
	if device.ControlAction(action) == device.ControlActionPowerStatus {
		actionType = device.ActionTypeControl
	}
	return device.NewActionJSON(actionType, action)
}
