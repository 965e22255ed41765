package ws

import (
	"time"

	"github.com/sharepass/internal/model"
)

type EventType string

const (
	EventBlockCreated  EventType = "block_created"
	EventBlockExtended EventType = "block_extended"
	EventBlockDeleted  EventType = "block_deleted"
	EventError         EventType = "error"
)

// IncomingMessage — сообщение от клиента. Поток почти односторонний (сервер → клиент),
// от клиента принимается только ping.
type IncomingMessage struct {
	Type EventType `json:"type"`
}

// OutgoingMessage — сообщение сервера клиенту.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// BlockCreatedPayload рассылается всем устройствам сессии при создании блока.
type BlockCreatedPayload struct {
	Block *model.TransferBlock `json:"block"`
}

// BlockExtendedPayload рассылается при продлении блока.
type BlockExtendedPayload struct {
	BlockID   string    `json:"block_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BlockDeletedPayload рассылается при удалении блока.
type BlockDeletedPayload struct {
	BlockID string `json:"block_id"`
}
