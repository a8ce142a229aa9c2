package webhook

import (
	"encoding/json"
	"strings"

	"github.com/wagate/wagate/internal/provider"
	"github.com/wagate/wagate/pkg/types"
)

// templateVariables builds the substitution set for one inbound message.
// from_name falls back to the local part of the sender address when the
// profile name is absent; chat_name falls back to from_name.
func templateVariables(device *types.Device, msg provider.IncomingMessage) map[string]any {
	fromName := msg.SenderName
	if fromName == "" {
		fromName = localPart(msg.From)
	}
	chatName := msg.ChatName
	if chatName == "" {
		chatName = fromName
	}

	var phone any
	if device.Phone != "" {
		phone = device.Phone
	}

	return map[string]any{
		"device_id":    device.ID,
		"device_name":  device.Name,
		"device_phone": phone,
		"message_id":   msg.ID,
		"from":         msg.From,
		"to":           msg.To,
		"from_name":    fromName,
		"message":      msg.Body,
		"message_type": msg.Type,
		"timestamp":    msg.Timestamp,
		"is_group":     msg.IsGroup(),
		"chat_name":    chatName,
		"has_media":    msg.HasMedia,
		"is_forwarded": msg.IsForwarded,
		"is_status":    msg.IsStatus,
		"broadcast":    msg.IsBroadcast,
	}
}

// defaultPayload is the fixed-schema body used when no template is
// configured or the template failed to render.
type defaultPayload struct {
	DeviceID    string `json:"device_id"`
	DeviceName  string `json:"device_name"`
	From        string `json:"from"`
	To          string `json:"to"`
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	Timestamp   int64  `json:"timestamp"`
	MessageID   string `json:"message_id"`
	FromName    string `json:"from_name"`
}

func defaultPayloadFor(device *types.Device, msg provider.IncomingMessage) []byte {
	fromName := msg.SenderName
	if fromName == "" {
		fromName = localPart(msg.From)
	}
	b, _ := json.Marshal(defaultPayload{
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		From:        msg.From,
		To:          msg.To,
		Message:     msg.Body,
		MessageType: msg.Type,
		Timestamp:   msg.Timestamp,
		MessageID:   msg.ID,
		FromName:    fromName,
	})
	return b
}

func localPart(addr string) string {
	if i := strings.IndexByte(addr, '@'); i >= 0 {
		return addr[:i]
	}
	return addr
}
