package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode"

	"storefront/internal/domain"
)

// otpRetention mantiene la credencial vencida un tiempo para poder responder "expired".
const otpRetention = 15 * time.Minute

// OTPStore guarda como máximo una credencial viva por usuario.
type OTPStore interface {
	Save(ctx context.Context, cred domain.OTPCredential) error
	Get(ctx context.Context, userID string) (domain.OTPCredential, error)
	// Consume borra la credencial solo si su hash sigue siendo codeHash;
	// devuelve false si ya no existía o fue reemplazada.
	Consume(ctx context.Context, userID, codeHash string) (bool, error)
}

type memoryOTPStore struct {
	mu    sync.Mutex
	items map[string]domain.OTPCredential
}

// NewMemoryOTPStore crea un OTPStore en memoria, válido para una sola instancia.
func NewMemoryOTPStore() OTPStore {
	return &memoryOTPStore{items: make(map[string]domain.OTPCredential)}
}

func (s *memoryOTPStore) Save(_ context.Context, cred domain.OTPCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, c := range s.items {
		if now.After(c.ExpiresAt.Add(otpRetention)) {
			delete(s.items, id)
		}
	}
	s.items[cred.UserID] = cred
	return nil
}

func (s *memoryOTPStore) Get(_ context.Context, userID string) (domain.OTPCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.items[userID]
	if !ok {
		return domain.OTPCredential{}, ErrOTPNotFound
	}
	if time.Now().UTC().After(cred.ExpiresAt.Add(otpRetention)) {
		delete(s.items, userID)
		return domain.OTPCredential{}, ErrOTPNotFound
	}
	return cred, nil
}

func (s *memoryOTPStore) Consume(_ context.Context, userID, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.items[userID]
	if !ok || cred.CodeHash != codeHash {
		return false, nil
	}
	delete(s.items, userID)
	return true, nil
}

func generateOTP() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])

	return code, saltStr + ":" + hash, nil
}

func verifyOTP(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	saltStr := parts[0]
	expectedHash := parts[1]
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
