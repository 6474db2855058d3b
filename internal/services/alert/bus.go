package alert

import (
	"context"
	"encoding/json"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/messages"
	"github.com/LeonardoBeccarini/growbox_control/pkg/mqttbus"
)

// Bus publishes alerts as JSON on the alert topic.
type Bus struct {
	pub mqttbus.IPublisher
}

func NewBus(pub mqttbus.IPublisher) *Bus { return &Bus{pub: pub} }

func (b *Bus) Deliver(_ context.Context, a messages.Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return b.pub.Publish(body)
}
