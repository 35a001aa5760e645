package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

// Compara el hash guardado antes de borrar, en una sola operación.
const redisOTPConsumeScript = `
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end
local cred = cjson.decode(raw)
if cred["codeHash"] ~= ARGV[1] then
  return 0
end
return redis.call("DEL", KEYS[1])
`

type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisOTPStore struct {
	client redisKV
	prefix string
}

// NewRedisOTPStore guarda credenciales OTP con TTL en Redis, compartidas entre instancias.
func NewRedisOTPStore(client *redis.Client) OTPStore {
	if client == nil {
		return nil
	}
	return &redisOTPStore{
		client: client,
		prefix: "otp:cred:",
	}
}

func (s *redisOTPStore) Save(ctx context.Context, cred domain.OTPCredential) error {
	if strings.TrimSpace(cred.UserID) == "" {
		return errors.New("otp credential without user id")
	}
	payload, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	ttl := time.Until(cred.ExpiresAt) + otpRetention
	if ttl <= 0 {
		ttl = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+cred.UserID, payload, ttl).Err()
}

func (s *redisOTPStore) Get(ctx context.Context, userID string) (domain.OTPCredential, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := s.client.Get(ctx, s.prefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OTPCredential{}, ErrOTPNotFound
		}
		return domain.OTPCredential{}, err
	}
	var cred domain.OTPCredential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return domain.OTPCredential{}, err
	}
	return cred, nil
}

func (s *redisOTPStore) Consume(ctx context.Context, userID, codeHash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	n, err := s.client.Eval(ctx, redisOTPConsumeScript, []string{s.prefix + userID}, codeHash).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
