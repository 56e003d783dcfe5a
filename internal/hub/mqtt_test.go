package hub_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"viera/internal/hub"
)

type published struct {
	topic   string
	payload string
	retain  bool
}

type fakeBroker struct {
	mu        sync.Mutex
	handlers  map[string]hub.MessageHandler
	published []published
	closed    bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]hub.MessageHandler)}
}

func (f *fakeBroker) Subscribe(topic string, handler hub.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBroker) Publish(topic string, payload []byte, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic, string(payload), retain})
	return nil
}

func (f *fakeBroker) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeBroker) deliver(subscription, topic, payload string) {
	f.mu.Lock()
	handler := f.handlers[subscription]
	f.mu.Unlock()
	handler(topic, []byte(payload))
}

func (f *fakeBroker) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

func TestMQTTBridgeSubscribes(t *testing.T) {
	broker := newFakeBroker()
	bridge := hub.NewMQTTBridge(broker, "home/tv/", newTestManager(t, "tv"))

	require.NoError(t, bridge.Start())
	assert.Contains(t, broker.handlers, "home/tv/+/set")
	assert.Equal(t, "home/tv/den/state", bridge.StateTopic("den"))

	bridge.Stop()
	assert.True(t, broker.closed)
}

func TestMQTTBridgeSetPublishesState(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		state   string
	}{
		{"bare action", "volume_up", "on"},
		{"status query", "power_status", "on"},
		{"json action", `{"type":"remote","action":"mute"}`, "on"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := newFakeBroker()
			bridge := hub.NewMQTTBridge(broker, "viera", newTestManager(t, "tv"))
			require.NoError(t, bridge.Start())

			broker.deliver("viera/+/set", "viera/tv/set", tt.payload)

			assert.Eventually(t, func() bool {
				return len(broker.messages()) == 1
			}, 2*time.Second, 10*time.Millisecond)

			msg := broker.messages()[0]
			assert.Equal(t, "viera/tv/state", msg.topic)
			assert.Equal(t, tt.state, msg.payload)
			assert.True(t, msg.retain)
		})
	}
}

func TestMQTTBridgeIgnoresBadMessages(t *testing.T) {
	broker := newFakeBroker()
	manager := newTestManager(t, "tv")
	bridge := hub.NewMQTTBridge(broker, "viera", manager)
	require.NoError(t, bridge.Start())

	broker.deliver("viera/+/set", "other/tv/set", "mute")
	broker.deliver("viera/+/set", "viera/tv/extra/set", "mute")
	broker.deliver("viera/+/set", "viera/tv/set", "   ")
	broker.deliver("viera/+/set", "viera/tv/set", `{"type":""}`)
	broker.deliver("viera/+/set", "viera/ghost/set", "mute")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, broker.messages())

	entries, err := manager.History(context.Background(), "tv", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMQTTBridgePublishOnlyOnChange(t *testing.T) {
	broker := newFakeBroker()
	manager := newTestManager(t, "tv")
	bridge := hub.NewMQTTBridge(broker, "viera", manager)
	require.NoError(t, bridge.Start())

	_, err := manager.RefreshStatus(context.Background(), "tv")
	require.NoError(t, err)
	_, err = manager.RefreshStatus(context.Background(), "tv")
	require.NoError(t, err)

	assert.Len(t, broker.messages(), 1)

	bridge.PublishState("tv", "")
	assert.Len(t, broker.messages(), 1)
}
