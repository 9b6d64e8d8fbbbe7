package models

// CredentialRecord stores encrypted secret material for a connection. The
// ciphertext is an AES-256-GCM payload produced by the vault; rows are removed
// together with their owning connection.
type CredentialRecord struct {
	BaseModel

	CustomerID string `gorm:"type:uuid;not null;index" json:"customer_id"`
	Ciphertext string `gorm:"not null" json:"-"`
}
