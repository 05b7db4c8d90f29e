package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
)

// ErrDecrypt is returned when a stored payload cannot be opened with any configured key.
var ErrDecrypt = errors.New("decryption failed with all available keys")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.Collection
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals record payloads with AES-GCM.
// Only the payload is encrypted; lock metadata stays queryable by the backend.
// An empty payload is stored empty so placeholders remain recognizable.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.Collection) ports.Collection {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) InsertOne(ctx context.Context, rec *domain.Record) error {
	sealed, err := m.seal(rec.Payload)
	if err != nil {
		return err
	}
	envelope := rec.Clone()
	envelope.Payload = sealed
	return m.next.InsertOne(ctx, envelope)
}

func (m *encryptionMiddleware) FindOne(ctx context.Context, key domain.Key) (*domain.Record, error) {
	rec, err := m.next.FindOne(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := m.open(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *encryptionMiddleware) UpdateOne(ctx context.Context, f ports.Filter, upd ports.Update) (bool, error) {
	if upd.SetPayload {
		sealed, err := m.seal(upd.Payload)
		if err != nil {
			return false, err
		}
		upd.Payload = sealed
	}
	return m.next.UpdateOne(ctx, f, upd)
}

func (m *encryptionMiddleware) DeleteOne(ctx context.Context, f ports.Filter) (bool, error) {
	return m.next.DeleteOne(ctx, f)
}

func (m *encryptionMiddleware) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return m.next.DeleteExpired(ctx, before)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]*domain.Record, error) {
	records, err := m.next.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := m.open(rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (m *encryptionMiddleware) EnsureIndexes(ctx context.Context) error {
	return m.next.EnsureIndexes(ctx)
}

func (m *encryptionMiddleware) Ping(ctx context.Context) error {
	return m.next.Ping(ctx)
}

func (m *encryptionMiddleware) Close() error {
	return m.next.Close()
}

func (m *encryptionMiddleware) seal(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return []byte{}, nil
	}
	ciphertext, err := encrypt(payload, m.config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}
	return ciphertext, nil
}

func (m *encryptionMiddleware) open(rec *domain.Record) error {
	if len(rec.Payload) == 0 {
		return nil
	}
	plain, err := decryptWithRotation(rec.Payload, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Unavailable("decrypt", fmt.Errorf("payload of %s: %w", rec.Key(), err))
	}
	rec.Payload = plain
	return nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, ErrDecrypt
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
