package types

import "fmt"

// MessageType is the content kind of a message
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

// IsValid checks if the message type is valid
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeText,
		MessageTypeImage:
		return true
	default:
		return false
	}
}

// Normalize treats an empty type as text. Rows written before the type column existed have none.
func (t MessageType) Normalize() MessageType {
	if t == "" {
		return MessageTypeText
	}
	return t
}

// String returns the string representation of the message type
func (t MessageType) String() string {
	return string(t)
}

// ParseMessageType parses a string into a MessageType
func ParseMessageType(s string) (MessageType, error) {
	mt := MessageType(s).Normalize()
	if !mt.IsValid() {
		return "", fmt.Errorf("invalid message type: %s", s)
	}
	return mt, nil
}
