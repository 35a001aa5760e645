package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	"storefront/internal/email"
	"storefront/internal/repository"
)

const (
	defaultOTPTTL     = 10 * time.Minute
	minPasswordLength = 6
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidName        = errors.New("name is required")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("rate limited")
	ErrOTPNotFound        = errors.New("otp not found, please login again")
	ErrOTPInvalid         = errors.New("invalid otp, please try again")
	ErrOTPExpired         = errors.New("otp expired, please login again")
	ErrOTPAttempts        = errors.New("too many invalid otp attempts, please login again")
)

// verifyKeyPrefix separa el conteo de códigos fallidos del de emisiones por email.
const verifyKeyPrefix = "verify:"

// MailQueue recibe correos para envío asíncrono; Enqueue no debe bloquear.
type MailQueue interface {
	Enqueue(job email.Job) error
}

// UserService coordina registro, login en dos pasos y perfil.
type UserService struct {
	logger  *zap.Logger
	users   repository.UserRepository
	otps    OTPStore
	mailer  MailQueue
	limiter OTPRateLimiter
	otpTTL  time.Duration
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	otps OTPStore,
	mailer MailQueue,
	limiter OTPRateLimiter,
	otpTTL time.Duration,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if otps == nil {
		otps = NewMemoryOTPStore()
	}
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	if limiter == nil {
		limiter = NewOTPRateLimiter(otpTTL, 5)
	}
	return &UserService{
		logger:  logger,
		users:   users,
		otps:    otps,
		mailer:  mailer,
		limiter: limiter,
		otpTTL:  otpTTL,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginChallenge es la respuesta del primer paso: falta el OTP.
type LoginChallenge struct {
	Email     string
	ExpiresAt time.Time
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	name := strings.TrimSpace(input.Name)
	emailAddr := normalizeEmail(input.Email)
	if name == "" {
		return domain.User{}, ErrInvalidName
	}
	if !isValidEmail(emailAddr) {
		return domain.User{}, ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.users.Create(ctx, domain.User{
		Name:         name,
		Email:        emailAddr,
		PasswordHash: string(hashBytes),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return user, nil
}

// Login valida la contraseña y emite un OTP; nunca devuelve token.
func (s *UserService) Login(ctx context.Context, emailAddr, password string) (LoginChallenge, error) {
	if s.users == nil {
		return LoginChallenge{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return LoginChallenge{}, ErrInvalidCredentials
	}
	if !s.limiter.Allow(ctx, emailAddr) {
		return LoginChallenge{}, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginChallenge{}, ErrInvalidCredentials
		}
		return LoginChallenge{}, err
	}
	if user.PasswordHash == "" {
		return LoginChallenge{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginChallenge{}, ErrInvalidCredentials
	}

	code, hash, err := generateOTP()
	if err != nil {
		return LoginChallenge{}, err
	}
	now := time.Now().UTC()
	cred := domain.OTPCredential{
		UserID:    user.ID,
		CodeHash:  hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.otpTTL),
	}
	if err := s.otps.Save(ctx, cred); err != nil {
		return LoginChallenge{}, err
	}

	msg, err := email.RenderOTP(user.Email, user.Name, code, s.otpTTL)
	if err != nil {
		s.logger.Error("render otp email failed", zap.Error(err))
	} else {
		s.enqueue("otp", msg)
	}

	return LoginChallenge{Email: user.Email, ExpiresAt: cred.ExpiresAt}, nil
}

// VerifyOTP consume la credencial si el código coincide y no venció.
func (s *UserService) VerifyOTP(ctx context.Context, emailAddr, code string, meta email.LoginMeta) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrOTPNotFound
		}
		return domain.User{}, err
	}

	cred, err := s.otps.Get(ctx, user.ID)
	if err != nil {
		return domain.User{}, err
	}
	if !isValidOTPCode(code) || !verifyOTP(code, cred.CodeHash) {
		// Cada fallo cuenta; al superar el límite la credencial se quema.
		if !s.limiter.Allow(ctx, verifyKeyPrefix+emailAddr) {
			if _, err := s.otps.Consume(ctx, user.ID, cred.CodeHash); err != nil {
				s.logger.Error("burn otp failed", zap.String("user_id", user.ID), zap.Error(err))
			}
			s.logger.Warn("otp burned after failed attempts", zap.String("user_id", user.ID))
			return domain.User{}, ErrOTPAttempts
		}
		return domain.User{}, ErrOTPInvalid
	}
	if cred.Expired(time.Now().UTC()) {
		return domain.User{}, ErrOTPExpired
	}

	// Solo se consume la credencial leída; si un login la reemplazó, no cuenta.
	consumed, err := s.otps.Consume(ctx, user.ID, cred.CodeHash)
	if err != nil {
		return domain.User{}, err
	}
	if !consumed {
		return domain.User{}, ErrOTPNotFound
	}

	if meta.When.IsZero() {
		meta.When = time.Now().UTC()
	}
	msg, err := email.RenderLoginVerified(user.Email, user.Name, meta)
	if err != nil {
		s.logger.Error("render login email failed", zap.Error(err))
	} else {
		s.enqueue("login_verified", msg)
	}

	return user, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// enqueue nunca propaga errores: el correo es best-effort.
func (s *UserService) enqueue(kind string, msg email.Message) {
	if s.mailer == nil {
		s.logger.Warn("mail queue not configured", zap.String("kind", kind))
		return
	}
	if err := s.mailer.Enqueue(email.Job{Kind: kind, Message: msg}); err != nil {
		s.logger.Warn("enqueue email failed", zap.Error(err), zap.String("kind", kind))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(addr string) bool {
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}
