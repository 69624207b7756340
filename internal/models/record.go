package models

import "time"

// EncryptedRecord is the on-disk representation of a note: an opaque
// ciphertext blob plus the metadata needed to verify and decrypt it.
// Exclusively owned by the store; plaintext is reconstructed only
// transiently on read.
type EncryptedRecord struct {
	// ID matches the note ID.
	ID string

	// PatientID and TemplateType are kept in the clear for local indexing;
	// they never leave the device.
	PatientID    string
	TemplateType string

	// Ciphertext is the AES-GCM sealed content envelope.
	Ciphertext []byte
	// Nonce is the per-record AEAD nonce.
	Nonce []byte
	// Checksum is the sha256 of Ciphertext, verified before decryption.
	Checksum string
	// KeyID identifies the derived key that sealed this record.
	KeyID string
	// ContentHash is the sha256 of the plaintext content, for correlation
	// without reversal.
	ContentHash string

	// ComplianceJSON is the serialized ComplianceMetadata.
	ComplianceJSON []byte

	SyncStatus SyncStatus
	Version    int64

	CreatedAt  time.Time
	ModifiedAt time.Time
}
