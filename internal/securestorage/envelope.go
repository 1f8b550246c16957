// Package securestorage implements the AES-GCM encrypted key/value
// envelope from spec §4.2, with quota-exceeded cleanup-and-retry and TTL
// expiry, grounded on the teacher's envelope shape
// (internal/services/crypto/encryption.go) adapted to the spec's explicit
// PBKDF2-SHA256 key-derivation choice (see DESIGN.md).
package securestorage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	aesKeyLen         = 32
	gcmNonceLen       = 12
	encryptedTagPrefix = "enc:"
)

// deriveKey derives a namespaced AES-256 key from a per-tab session secret
// and a fixed per-namespace salt, via PBKDF2-SHA256 (100k iterations).
func deriveKey(sessionSecret, namespace string) []byte {
	salt := sha256.Sum256([]byte("nearconnect:securestorage:" + namespace))
	return pbkdf2.Key([]byte(sessionSecret), salt[:], pbkdf2Iterations, aesKeyLen, sha256.New)
}

// entry is the wrapper persisted for every stored value.
type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl,omitempty"` // milliseconds; 0 means no expiry
	Encrypted bool            `json:"encrypted,omitempty"`
}

// Backend is the underlying key/value store (in-memory by default; a
// browser port would back this with localStorage/IndexedDB).
type Backend interface {
	Get(key string) (string, bool)
	Set(key, value string) error // returns a quota error to trigger cleanup
	Delete(key string)
	Keys() []string
}

// ErrQuotaExceeded signals the backend is out of space.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// SetOptions configures one Set call.
type SetOptions struct {
	Encrypt bool
	TTL     time.Duration
}

// Store is the envelope over Backend. sessionSecret is the per-tab secret
// used to derive encryption keys; namespace prefixes every stored key and
// salts key derivation. The Store neither stores nor loads a secret of its
// own; there is no "<ns>:entropy" entry.
type Store struct {
	mu            sync.Mutex
	backend       Backend
	namespace     string
	sessionSecret string
}

// New constructs a Store bound to backend, namespace and sessionSecret.
func New(backend Backend, namespace, sessionSecret string) *Store {
	return &Store{backend: backend, namespace: namespace, sessionSecret: sessionSecret}
}

func (s *Store) namespaced(key string) string {
	return s.namespace + ":" + key
}

// Set wraps value as {data, timestamp, ttl?, encrypted?}; when Encrypt is
// set, the serialized wrapper is AES-GCM encrypted with a fresh 12-byte IV
// and prefixed with "enc:". On a quota error, a cleanup pass runs (expired
// entries are purged) and the write is retried once.
func (s *Store) Set(key string, value any, opts SetOptions) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	e := entry{Data: raw, Timestamp: time.Now().UnixMilli(), Encrypted: opts.Encrypt}
	if opts.TTL > 0 {
		e.TTL = opts.TTL.Milliseconds()
	}

	wrapped, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	payload := string(wrapped)
	if opts.Encrypt {
		payload, err = s.encrypt(wrapped)
		if err != nil {
			return fmt.Errorf("encrypt entry: %w", err)
		}
	}

	nsKey := s.namespaced(key)
	if err := s.backend.Set(nsKey, payload); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			s.cleanupExpired()
			if err := s.backend.Set(nsKey, payload); err != nil {
				return fmt.Errorf("set after cleanup: %w", err)
			}
			return nil
		}
		return err
	}
	return nil
}

// Get retrieves and decodes key, checking TTL expiry. An expired entry is
// removed and reported as absent.
func (s *Store) Get(key string, out any) (bool, error) {
	nsKey := s.namespaced(key)
	raw, ok := s.backend.Get(nsKey)
	if !ok {
		return false, nil
	}

	var wrapped []byte
	if strings.HasPrefix(raw, encryptedTagPrefix) {
		plain, err := s.decrypt(raw)
		if err != nil {
			return false, fmt.Errorf("decrypt entry: %w", err)
		}
		wrapped = plain
	} else {
		wrapped = []byte(raw)
	}

	var e entry
	if err := json.Unmarshal(wrapped, &e); err != nil {
		return false, fmt.Errorf("unmarshal entry: %w", err)
	}

	if e.TTL > 0 {
		expiresAt := e.Timestamp + e.TTL
		if time.Now().UnixMilli() > expiresAt {
			s.backend.Delete(nsKey)
			return false, nil
		}
	}

	if out != nil {
		if err := json.Unmarshal(e.Data, out); err != nil {
			return false, fmt.Errorf("unmarshal data: %w", err)
		}
	}
	return true, nil
}

func (s *Store) encrypt(plaintext []byte) (string, error) {
	key := deriveKey(s.sessionSecret, s.namespace)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcmNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	body := append(append([]byte{}, nonce...), ciphertext...)
	return encryptedTagPrefix + base64.StdEncoding.EncodeToString(body), nil
}

func (s *Store) decrypt(tagged string) ([]byte, error) {
	b64 := strings.TrimPrefix(tagged, encryptedTagPrefix)
	body, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(body) < gcmNonceLen {
		return nil, errors.New("envelope too short")
	}
	nonce, ciphertext := body[:gcmNonceLen], body[gcmNonceLen:]

	key := deriveKey(s.sessionSecret, s.namespace)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("authentication failed: corrupted or tampered entry")
	}
	return plaintext, nil
}

// Delete removes key unconditionally.
func (s *Store) Delete(key string) {
	s.backend.Delete(s.namespaced(key))
}

// cleanupExpired scans all keys in this namespace and deletes any entry
// whose TTL has lapsed, freeing space for a quota-exceeded retry.
func (s *Store) cleanupExpired() {
	prefix := s.namespace + ":"
	now := time.Now().UnixMilli()
	for _, k := range s.backend.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		raw, ok := s.backend.Get(k)
		if !ok {
			continue
		}
		var wrapped []byte
		if strings.HasPrefix(raw, encryptedTagPrefix) {
			plain, err := s.decrypt(raw)
			if err != nil {
				continue
			}
			wrapped = plain
		} else {
			wrapped = []byte(raw)
		}
		var e entry
		if err := json.Unmarshal(wrapped, &e); err != nil {
			continue
		}
		if e.TTL > 0 && now > e.Timestamp+e.TTL {
			s.backend.Delete(k)
		}
	}
}
