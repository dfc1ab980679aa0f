package crypto

import "context"

// Cipher is an opaque encrypt/decrypt capability for data at rest.
// The dead-letter spool runs every payload through it before touching disk.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Plaintext is a pass-through Cipher for tests and local runs.
type Plaintext struct{}

func (Plaintext) Encrypt(_ context.Context, p []byte) ([]byte, error) { return p, nil }
func (Plaintext) Decrypt(_ context.Context, c []byte) ([]byte, error) { return c, nil }
