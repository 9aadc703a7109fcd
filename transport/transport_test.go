package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportCloseClosesBothHalves(t *testing.T) {
	pub := &mockPublisher{}
	sub := &mockSubscriber{}

	assert.NoError(t, Transport{Publisher: pub, Subscriber: sub}.Close())
	assert.Equal(t, 1, pub.closed)
	assert.Equal(t, 1, sub.closed)
}

func TestTransportCloseSharedPubSubOnce(t *testing.T) {
	ps := &mockPubSub{}

	assert.NoError(t, Transport{Publisher: ps, Subscriber: ps}.Close())
	assert.Equal(t, 1, ps.closed)
}

func TestTransportCloseJoinsErrors(t *testing.T) {
	closeErr := errors.New("close failed")
	pub := &mockPublisher{err: closeErr}

	err := Transport{Publisher: pub, Subscriber: &mockSubscriber{}}.Close()
	assert.ErrorIs(t, err, closeErr)
	assert.NoError(t, Transport{}.Close())
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		caps     Capabilities
		reliable bool
	}{
		{ChannelCapabilities, true},
		{NATSCapabilities, false},
		{KafkaCapabilities, false},
		{RabbitMQCapabilities, true},
		{AWSCapabilities, true},
	}
	for _, tt := range tests {
		t.Run(tt.caps.Name, func(t *testing.T) {
			assert.Equal(t, tt.reliable, tt.caps.SupportsReliableDelivery())
		})
	}
}

func TestCapabilitiesFits(t *testing.T) {
	assert.True(t, ChannelCapabilities.Fits(10<<20))
	assert.True(t, AWSCapabilities.Fits(256*1024))
	assert.False(t, AWSCapabilities.Fits(256*1024+1))
}
