package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/lambdabridge/transport"
)

func TestRegisteredOnImport(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, transport.NATSCapabilities, Capabilities())
}

func stubFactories(t *testing.T, pubErr, subErr error) (*nats.PublisherConfig, *nats.SubscriberConfig, *mockPublisher) {
	t.Helper()
	originalPub, originalSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	})

	var pubCfg nats.PublisherConfig
	var subCfg nats.SubscriberConfig
	pub := &mockPublisher{}
	PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		return pub, pubErr
	}
	SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		subCfg = cfg
		return &mockSubscriber{}, subErr
	}
	return &pubCfg, &subCfg, pub
}

func TestBuild(t *testing.T) {
	pubCfg, subCfg, _ := stubFactories(t, nil, nil)

	tr, err := Build(context.Background(), &mockConfig{url: "nats://bus:4222", clientName: "bridge"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)

	assert.Equal(t, "nats://bus:4222", pubCfg.URL)
	assert.Equal(t, "nats://bus:4222", subCfg.URL)
	assert.True(t, pubCfg.JetStream.Disabled)
	assert.True(t, subCfg.JetStream.Disabled)
	assert.Len(t, pubCfg.NatsOptions, 2)
	assert.Len(t, subCfg.NatsOptions, 2)
}

func TestBuildDefaultsURL(t *testing.T) {
	pubCfg, _, _ := stubFactories(t, nil, nil)

	_, err := Build(context.Background(), &mockConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, natsgo.DefaultURL, pubCfg.URL)
}

func TestBuildErrors(t *testing.T) {
	t.Run("publisher", func(t *testing.T) {
		stubFactories(t, errors.New("publisher error"), nil)
		_, err := Build(context.Background(), &mockConfig{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("subscriber closes publisher", func(t *testing.T) {
		_, _, pub := stubFactories(t, nil, errors.New("subscriber error"))
		_, err := Build(context.Background(), &mockConfig{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "subscriber error")
		assert.True(t, pub.closed)
	})
}

func TestConnectOptionsSetsClientName(t *testing.T) {
	var opts natsgo.Options
	for _, o := range ConnectOptions(&mockConfig{clientName: "bridge"}) {
		require.NoError(t, o(&opts))
	}
	assert.Equal(t, "bridge", opts.Name)
	assert.Equal(t, -1, opts.MaxReconnect)

	assert.Len(t, ConnectOptions(&mockConfig{}), 1)
}

type mockConfig struct {
	url        string
	clientName string
}

func (m *mockConfig) GetControlTransport() string   { return TransportName }
func (m *mockConfig) GetKafkaBrokers() []string     { return nil }
func (m *mockConfig) GetKafkaConsumerGroup() string { return "" }
func (m *mockConfig) GetRabbitMQURL() string        { return "" }
func (m *mockConfig) GetNATSURL() string            { return m.url }
func (m *mockConfig) GetNATSClientName() string     { return m.clientName }
func (m *mockConfig) GetAWSRegion() string          { return "" }
func (m *mockConfig) GetAWSAccountID() string       { return "" }
func (m *mockConfig) GetAWSAccessKeyID() string     { return "" }
func (m *mockConfig) GetAWSSecretAccessKey() string { return "" }
func (m *mockConfig) GetAWSEndpoint() string        { return "" }

type mockPublisher struct{ closed bool }

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
func (m *mockPublisher) Close() error {
	m.closed = true
	return nil
}

type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return make(chan *message.Message), nil
}
func (m *mockSubscriber) Close() error { return nil }
