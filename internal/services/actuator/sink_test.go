package actuator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(payload []byte) error { return m.Called(payload).Error(0) }

func (m *mockPublisher) PublishTo(topic string, payload []byte) error {
	return m.Called(topic, payload).Error(0)
}

func (m *mockPublisher) Close() { m.Called() }

type stubSink struct {
	up   bool
	err  error
	sent []messages.ActuatorCommand
}

func (s *stubSink) Send(_ context.Context, cmd messages.ActuatorCommand) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *stubSink) Available() bool { return s.up }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestBusSinkPublishesWireShape(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", []byte(`{"command":"PUMP","id":2,"state":true}`)).Return(nil).Once()
	pub.On("Publish", []byte(`{"command":"set_fan_pwm","value":55}`)).Return(nil).Once()

	s := NewBusSink(pub, nil)
	require.True(t, s.Available())
	require.NoError(t, s.Send(context.Background(), messages.Pump(2, true)))
	require.NoError(t, s.Send(context.Background(), messages.FanPWM(55)))
	pub.AssertExpectations(t)
}

func TestBusSinkErrors(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything).Return(errors.New("timeout"))

	connected := false
	s := NewBusSink(pub, func() bool { return connected })
	assert.False(t, s.Available())

	err := s.Send(context.Background(), messages.Switch(messages.CmdLight, true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LIGHT=on")
}

func TestFanOut(t *testing.T) {
	device := &stubSink{up: false}
	bus := &stubSink{up: true}
	f := NewFanOut(quiet).Add("device", device).Add("bus", bus).Add("none", nil)

	require.True(t, f.Available())
	require.NoError(t, f.Send(context.Background(), messages.FanPWM(40)))
	assert.Empty(t, device.sent)
	assert.Len(t, bus.sent, 1)

	device.up = true
	bus.err = errors.New("broker down")
	require.NoError(t, f.Send(context.Background(), messages.FanPWM(50)))
	assert.Len(t, device.sent, 1)

	device.err = errors.New("socket closed")
	err := f.Send(context.Background(), messages.FanPWM(60))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket closed")
	assert.Contains(t, err.Error(), "broker down")
}

func TestFanOutWithoutRoutes(t *testing.T) {
	f := NewFanOut(quiet).Add("device", &stubSink{})
	assert.False(t, f.Available())
	assert.ErrorIs(t, f.Send(context.Background(), messages.FanPWM(10)), ErrNoRoute)
}
