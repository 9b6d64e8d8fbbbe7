package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/modelgrid/connecthub/internal/models"
)

// ErrCredentialNotFound signals a dangling credentials_ref.
var ErrCredentialNotFound = errors.New("vault: credential record not found")

// Store persists encrypted credential payloads and hands out opaque
// references. Connection rows only ever carry the reference.
type Store struct {
	db     *gorm.DB
	crypto *Crypto
}

// NewStore constructs a credential store.
func NewStore(db *gorm.DB, crypto *Crypto) (*Store, error) {
	if db == nil {
		return nil, errors.New("vault: db is required")
	}
	if crypto == nil {
		return nil, errors.New("vault: crypto is required")
	}
	return &Store{db: db, crypto: crypto}, nil
}

// Put encrypts the payload and creates a new credential record, returning its reference.
func (s *Store) Put(ctx context.Context, customerID string, payload any) (string, error) {
	ciphertext, err := s.seal(payload)
	if err != nil {
		return "", err
	}

	record := models.CredentialRecord{
		CustomerID: customerID,
		Ciphertext: ciphertext,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("vault: create credential record: %w", err)
	}
	return record.ID, nil
}

// Replace overwrites the payload behind an existing reference, keeping the
// reference stable across token refreshes.
func (s *Store) Replace(ctx context.Context, ref string, payload any) error {
	ciphertext, err := s.seal(payload)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&models.CredentialRecord{}).
		Where("id = ?", ref).
		Update("ciphertext", ciphertext)
	if result.Error != nil {
		return fmt.Errorf("vault: update credential record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// Get decrypts the payload behind a reference into dest.
func (s *Store) Get(ctx context.Context, ref string, dest any) error {
	var record models.CredentialRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("vault: load credential record: %w", err)
	}

	plaintext, err := s.crypto.Decrypt(record.Ciphertext)
	if err != nil {
		return fmt.Errorf("vault: decrypt credential record: %w", err)
	}
	return json.Unmarshal(plaintext, dest)
}

// Delete removes a credential record. Missing records are not an error.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	return s.db.WithContext(ctx).Where("id = ?", ref).Delete(&models.CredentialRecord{}).Error
}

func (s *Store) seal(payload any) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("vault: marshal credential payload: %w", err)
	}
	return s.crypto.Encrypt(plaintext)
}
