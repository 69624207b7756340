// Package cryptox implements the cryptographic primitives of the vault:
// argon2id passphrase key derivation, AES-GCM authenticated encryption of
// serialized records, and the checksums used for tamper detection.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/shimishnaByAndy/clinicalvault/internal/common"
	"golang.org/x/crypto/argon2"
)

// Argon2Params defines the parameters for argon2id key derivation.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultArgon2Params returns the recommended argon2id parameters.
func DefaultArgon2Params() *Argon2Params {
	return &Argon2Params{
		Memory:      64 * 1024, // 64MB
		Iterations:  3,
		Parallelism: 2,
		KeyLength:   32,
	}
}

// DeriveKey derives a symmetric key from a passphrase and salt using argon2id.
// Deterministic: the same passphrase and salt always yield the same key, so
// re-opening existing data requires the original passphrase.
func DeriveKey(passphrase, salt []byte, p *Argon2Params) []byte {
	if p == nil {
		p = DefaultArgon2Params()
	}
	return argon2.IDKey(passphrase, salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
}

// MakeVerifier returns a value that can be stored in the clear and later
// compared to detect a wrong passphrase without attempting a decryption.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// KeyID returns a short stable identifier for a key, stamped on every
// encrypted row so stored data can be matched to the key that produced it.
func KeyID(key []byte) string {
	hash := sha256.Sum256(key)
	return hex.EncodeToString(hash[:8])
}

// Encrypt encrypts plaintext with AES-GCM under the given key. A new random
// 12-byte nonce is generated per call; ciphertext and nonce are returned
// separately.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrEncryptionFailure, err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrEncryptionFailure, err)
	}

	nonce = make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrEncryptionFailure, err)
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt decrypts AES-GCM ciphertext produced by Encrypt. A failed
// authentication tag surfaces as ErrDecryptionFailure; corrupted data is
// never returned as plaintext.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailure, err)
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher open: %v", common.ErrDecryptionFailure, err)
	}
	return plaintext, nil
}

// EncryptJSON serializes v to JSON and encrypts the result.
func EncryptJSON(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: marshal: %v", common.ErrEncryptionFailure, err)
	}
	return Encrypt(plaintext, key)
}

// DecryptJSON decrypts ciphertext and unmarshals the resulting JSON into v.
func DecryptJSON(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Decrypt(ciphertext, nonce, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", common.ErrDecryptionFailure, err)
	}
	return nil
}

// Checksum returns the hex-encoded sha256 of data. Stored next to each
// ciphertext blob and re-verified before any decryption attempt.
func Checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashText returns the hex-encoded sha256 of a text, used to correlate
// de-identified output with its original without keeping the original.
func HashText(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
