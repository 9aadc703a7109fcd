package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/lambdabridge/transport"
)

func TestRegisteredOnImport(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, transport.ChannelCapabilities, transport.GetCapabilities(TransportName))
	assert.Equal(t, transport.ChannelCapabilities, Capabilities())
}

func TestBuildPassesPersistentConfig(t *testing.T) {
	original := Factory
	t.Cleanup(func() { Factory = original })

	var got gochannel.Config
	Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
		got = cfg
		return original(cfg, logger)
	}

	tr, err := Build(context.Background(), nil, watermill.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	assert.True(t, got.Persistent)
	assert.EqualValues(t, OutputBuffer, got.OutputChannelBuffer)
}

func TestPublishBeforeSubscribeIsDelivered(t *testing.T) {
	tr, err := Build(context.Background(), nil, watermill.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	require.NoError(t, tr.Publisher.Publish("control", message.NewMessage("m1", []byte("bind"))))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	messages, err := tr.Subscriber.Subscribe(ctx, "control")
	require.NoError(t, err)

	select {
	case msg := <-messages:
		assert.Equal(t, "bind", string(msg.Payload))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}
