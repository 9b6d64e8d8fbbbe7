package models

import (
	"gorm.io/datatypes"
)

// AuditLog records connection lifecycle mutations for later review.
type AuditLog struct {
	BaseModel

	CustomerID   string         `gorm:"type:uuid;index" json:"customer_id"`
	Action       string         `gorm:"not null;index" json:"action"`
	ResourceType string         `gorm:"not null" json:"resource_type"`
	ResourceID   string         `gorm:"index" json:"resource_id"`
	Detail       datatypes.JSON `json:"detail,omitempty"`
}
