package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ActorID   *string   `json:"actor_id" gorm:"index"`
	Action    string    `json:"action" gorm:"not null"`
	Resource  string    `json:"resource" gorm:"not null"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// WebhookEvent stores verified processor deliveries, deduplicated on the
// processor's event id.
type WebhookEvent struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	EventID         string         `json:"event_id" gorm:"size:191;uniqueIndex;not null"`
	EventType       string         `json:"event_type" gorm:"size:100;index;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessingError string         `json:"processing_error"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
