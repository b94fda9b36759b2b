package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/nacl/secretbox"
)

// CredentialStore holds one Gemini API key per session. Get returns an
// empty string when nothing is linked.
type CredentialStore interface {
	Get(ctx context.Context, sessionID uuid.UUID) (string, error)
	Set(ctx context.Context, sessionID uuid.UUID, apiKey string) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

var ErrCredentialCorrupt = errors.New("stored credential could not be opened")

type MemoryCredentialStore struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]string
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{keys: make(map[uuid.UUID]string)}
}

func (s *MemoryCredentialStore) Get(ctx context.Context, sessionID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[sessionID], nil
}

func (s *MemoryCredentialStore) Set(ctx context.Context, sessionID uuid.UUID, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[sessionID] = apiKey
	return nil
}

func (s *MemoryCredentialStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, sessionID)
	return nil
}

// RedisCredentialStore keeps keys sealed with secretbox under a TTL that
// matches the session idle timeout.
type RedisCredentialStore struct {
	redis *redis.Client
	key   [32]byte
	ttl   time.Duration
}

func NewRedisCredentialStore(redisClient *redis.Client, secret string, ttl time.Duration) *RedisCredentialStore {
	return &RedisCredentialStore{
		redis: redisClient,
		key:   DeriveSealKey(secret),
		ttl:   ttl,
	}
}

func credentialKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("credential:%s", sessionID.String())
}

func (s *RedisCredentialStore) Get(ctx context.Context, sessionID uuid.UUID) (string, error) {
	sealed, err := s.redis.Get(ctx, credentialKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}

	// Sliding expiry, same as session activity.
	s.redis.Expire(ctx, credentialKey(sessionID), s.ttl)

	return openSealed(&s.key, sealed)
}

func (s *RedisCredentialStore) Set(ctx context.Context, sessionID uuid.UUID, apiKey string) error {
	sealed, err := seal(&s.key, apiKey)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, credentialKey(sessionID), sealed, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (s *RedisCredentialStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return s.redis.Del(ctx, credentialKey(sessionID)).Err()
}

// DeriveSealKey turns an arbitrary secret into a secretbox key.
func DeriveSealKey(secret string) [32]byte {
	return sha256.Sum256([]byte(secret))
}

func seal(key *[32]byte, plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func openSealed(key *[32]byte, sealed string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(box) < 24 {
		return "", ErrCredentialCorrupt
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, key)
	if !ok {
		return "", ErrCredentialCorrupt
	}
	return string(plain), nil
}
