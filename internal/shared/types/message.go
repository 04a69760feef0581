package types

import "time"

// ToastType classifies a toast notification
type ToastType string

const (
	ToastInfo    ToastType = "info"
	ToastSuccess ToastType = "success"
	ToastWarning ToastType = "warning"
	ToastError   ToastType = "error"
)

// ParseToastType maps free-form input onto a known type, defaulting to info
func ParseToastType(s string) ToastType {
	switch ToastType(s) {
	case ToastSuccess, ToastWarning, ToastError:
		return ToastType(s)
	}
	return ToastInfo
}

// Toast represents a user-visible notification raised by an extension
type Toast struct {
	ExtensionID string    `json:"extension_id"`
	Message     string    `json:"message"`
	Type        ToastType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type        string      `json:"type"`
	ID          string      `json:"id,omitempty"`
	ExtensionID string      `json:"extension_id,omitempty"`
	Channel     string      `json:"channel,omitempty"`
	Slot        string      `json:"slot,omitempty"`
	Message     string      `json:"message,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Approved    *bool       `json:"approved,omitempty"`
	Timestamp   int64       `json:"timestamp,omitempty"`
}
