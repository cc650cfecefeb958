package command

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/utils"
)

func TestHTTPRelay_SendState(t *testing.T) {
	var got Payload
	var path, contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	relay := NewHTTPRelay(&config.CommandConfig{Timeout: time.Second, RelayEndpoint: "/relay"}, utils.NewNopLogger())
	defer relay.Close()

	require.NoError(t, relay.SendState(context.Background(), server.URL+"/", 42, true))
	assert.Equal(t, "/relay", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, Payload{Status: 1, ID: 42}, got)

	require.NoError(t, relay.SendState(context.Background(), server.URL, 42, false))
	assert.Equal(t, 0, got.Status)
}

func TestHTTPRelay_Failures(t *testing.T) {
	relay := NewHTTPRelay(&config.CommandConfig{Timeout: 200 * time.Millisecond, RelayEndpoint: "/relay"}, utils.NewNopLogger())

	t.Run("Should report non-2xx responses", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "relay stuck", http.StatusInternalServerError)
		}))
		defer server.Close()

		err := relay.SendState(context.Background(), server.URL, 1, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDelivery)
		assert.ErrorIs(t, err, utils.ErrDependency)

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	})

	t.Run("Should time out slow devices", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		start := time.Now()
		err := relay.SendState(context.Background(), server.URL, 1, true)
		assert.ErrorIs(t, err, ErrDelivery)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("Should reject devices without host", func(t *testing.T) {
		assert.ErrorIs(t, relay.SendState(context.Background(), "", 1, true), ErrDelivery)
	})
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	err       error
	hang      bool
	messages  []published
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	if p.hang {
		return &fakeToken{done: make(chan struct{})}
	}
	return newFakeToken(p.err)
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func (p *fakePublisher) Disconnect(uint) { p.connected = false }

func TestMQTTTransport_SendState(t *testing.T) {
	pub := &fakePublisher{connected: true}
	transport := newMQTTTransport(pub, "voltwatch/commands/", time.Second, utils.NewNopLogger())

	require.NoError(t, transport.SendState(context.Background(), "ignored", 7, true))
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "voltwatch/commands/7", pub.messages[0].topic)
	assert.Equal(t, byte(1), pub.messages[0].qos)

	var payload Payload
	require.NoError(t, json.Unmarshal(pub.messages[0].payload, &payload))
	assert.Equal(t, Payload{Status: 1, ID: 7}, payload)

	require.NoError(t, transport.Close())
	assert.False(t, pub.connected)
}

func TestMQTTTransport_Failures(t *testing.T) {
	t.Run("Should fail when disconnected", func(t *testing.T) {
		transport := newMQTTTransport(&fakePublisher{}, "p", time.Second, utils.NewNopLogger())
		assert.ErrorIs(t, transport.SendState(context.Background(), "", 1, false), ErrDelivery)
	})

	t.Run("Should surface broker errors", func(t *testing.T) {
		pub := &fakePublisher{connected: true, err: errors.New("not authorized")}
		transport := newMQTTTransport(pub, "p", time.Second, utils.NewNopLogger())
		assert.ErrorIs(t, transport.SendState(context.Background(), "", 1, false), ErrDelivery)
	})

	t.Run("Should time out unacknowledged publishes", func(t *testing.T) {
		pub := &fakePublisher{connected: true, hang: true}
		transport := newMQTTTransport(pub, "p", 50*time.Millisecond, utils.NewNopLogger())
		assert.ErrorIs(t, transport.SendState(context.Background(), "", 1, false), ErrDelivery)
	})
}
