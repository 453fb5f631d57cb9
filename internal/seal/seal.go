// Package seal encrypts embedding vectors before they cross the trust
// boundary. Vectors are sealed with XChaCha20-Poly1305 (authenticated:
// confidentiality plus integrity) under a symmetric key; the chunk hash is
// bound as additional data so a record cannot be replayed under another key.
package seal

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mirrorlab/codesync/internal/merkle"
)

var (
	// ErrEncryption is fatal: a failure to seal never falls back to
	// sending plaintext.
	ErrEncryption = errors.New("seal: encryption failed")

	// ErrKeySize is returned when the key is not 32 bytes.
	ErrKeySize = errors.New("seal: key must be 32 bytes")

	// ErrDecryption is returned when an authenticated open fails.
	ErrDecryption = errors.New("seal: decryption failed")
)

// Record is the only artifact durably stored beyond the trust boundary.
// It carries no plaintext and no representation reversible without the key.
type Record struct {
	ChunkHash  string `json:"chunkHash"`
	Ciphertext []byte `json:"encryptedVector"`
	Nonce      []byte `json:"nonce"`
	KeyID      string `json:"keyId"`
}

// Sealer encrypts and decrypts embedding vectors under one symmetric key.
type Sealer struct {
	aead  cipher.AEAD
	keyID string
}

// New creates a Sealer from a 32-byte key. The key ID is derived from the
// key digest, so records name the key they were sealed under without
// revealing it.
func New(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrKeySize
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	return &Sealer{
		aead:  aead,
		keyID: merkle.HashBytes(key)[:16],
	}, nil
}

// KeyID identifies the sealing key.
func (s *Sealer) KeyID() string {
	return s.keyID
}

// Seal encrypts a vector for the given chunk with a fresh random nonce.
func (s *Sealer) Seal(chunkHash string, vector []float32) (*Record, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrEncryption, err)
	}

	ct := s.aead.Seal(nil, nonce, encodeVector(vector), []byte(chunkHash))
	return &Record{
		ChunkHash:  chunkHash,
		Ciphertext: ct,
		Nonce:      nonce,
		KeyID:      s.keyID,
	}, nil
}

// Open decrypts a record back to its vector. Fails if the record was sealed
// under a different key or tampered with.
func (s *Sealer) Open(rec *Record) ([]float32, error) {
	if rec.KeyID != s.keyID {
		return nil, fmt.Errorf("%w: key id mismatch", ErrDecryption)
	}
	plain, err := s.aead.Open(nil, rec.Nonce, rec.Ciphertext, []byte(rec.ChunkHash))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return decodeVector(plain)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: bad vector length", ErrDecryption)
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
