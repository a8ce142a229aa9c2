package event

import "github.com/wagate/wagate/pkg/types"

// DeviceCreatedData is the data for device.created events.
type DeviceCreatedData struct {
	Info *types.Device `json:"info"`
}

// DeviceUpdatedData is the data for device.updated events.
type DeviceUpdatedData struct {
	Info *types.Device `json:"info"`
}

// DeviceDeletedData is the data for device.deleted events.
type DeviceDeletedData struct {
	DeviceID string `json:"deviceID"`
}

// DeviceStateData is the data for device.state events, published on every
// lifecycle transition.
type DeviceStateData struct {
	DeviceID string             `json:"deviceID"`
	Status   types.DeviceStatus `json:"status"`
	Reason   string             `json:"reason,omitempty"`
}

// DeviceQRData is the data for device.qr events. Code is the raw pairing
// payload; rendering it is the consumer's concern.
type DeviceQRData struct {
	DeviceID string `json:"deviceID"`
	Code     string `json:"code"`
}

// MessageReceivedData is the data for message.received events.
type MessageReceivedData struct {
	Info *types.Message `json:"info"`
}

// MessageSentData is the data for message.sent events.
type MessageSentData struct {
	Info *types.Message `json:"info"`
}

// WebhookDeliveredData is the data for webhook.delivered events. Status is
// the upstream HTTP status code, including non-2xx completions.
type WebhookDeliveredData struct {
	DeviceID  string `json:"deviceID"`
	MessageID string `json:"messageID"`
	URL       string `json:"url"`
	Status    int    `json:"status"`
}

// WebhookFailedData is the data for webhook.failed events, published when
// delivery failed at the transport level.
type WebhookFailedData struct {
	DeviceID  string `json:"deviceID"`
	MessageID string `json:"messageID"`
	URL       string `json:"url"`
	Kind      string `json:"kind"` // "connection_refused" | "timeout" | "http" | "other"
	Error     string `json:"error"`
}
