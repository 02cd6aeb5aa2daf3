/*
Package auth resolves credentials into an explicit per-request Context.

PURPOSE:
  There is no global "current user". Login creates a Session row and
  returns a signed token naming it; every request presents the token and
  gets back a Context{User, Session}. Logout deletes the session, which is
  the only teardown there is.

TOKENS:
  HS256 JWTs (golang-jwt/jwt/v5). Claims: sub = user id, sid = session id,
  role, iat, exp. A valid signature is not enough: the session must still
  exist and be unexpired, so logout and admin deletes take effect at once.

PASSWORDS:
  bcrypt hashes only. The configured bootstrap admin is created (or its
  password refreshed) by EnsureAdmin at startup; after that it is an
  ordinary stored user.

SEE ALSO:
  - context.go: Context plumbing for HTTP handlers
  - api/middleware.go: Bearer token extraction
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/fleetlog/fleet"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")
	ErrForbidden          = errors.New("admin access required")
	ErrRiderOnly          = errors.New("only riders log entries")
)

// MinPasswordLength applies to passwords set through the API.
const MinPasswordLength = 6

// =============================================================================
// CONFIG
// =============================================================================

type Config struct {
	Secret          []byte
	SessionTTL      time.Duration
	AdminEmail      string
	AdminPassword   string
	DefaultLanguage fleet.Language
	Now             func() time.Time
}

// =============================================================================
// PASSWORDS
// =============================================================================

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", &fleet.ValidationError{Field: "password", Message: "is required"}
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// HashNewPassword checks a password and its confirmation before hashing.
func HashNewPassword(password, confirm string) (string, error) {
	if password != confirm {
		return "", fleet.ErrPasswordMismatch
	}
	if len(password) < MinPasswordLength {
		return "", &fleet.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		}
	}
	return HashPassword(password)
}

// CheckPassword reports whether plain matches hash.
func CheckPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// =============================================================================
// AUTHENTICATOR
// =============================================================================

type Authenticator struct {
	store fleet.Store
	cfg   Config
}

type claims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func New(store fleet.Store, cfg Config) *Authenticator {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if !cfg.DefaultLanguage.Valid() {
		cfg.DefaultLanguage = fleet.LangFR
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Authenticator{store: store, cfg: cfg}
}

func (a *Authenticator) now() time.Time { return a.cfg.Now().UTC() }

// EnsureAdmin creates the configured bootstrap admin, or resets its
// password if the account already exists. No-op without an admin email.
func (a *Authenticator) EnsureAdmin(ctx context.Context) error {
	return a.EnsureAdminIn(ctx, a.store)
}

// EnsureAdminIn is EnsureAdmin against s, typically a transaction.
func (a *Authenticator) EnsureAdminIn(ctx context.Context, s fleet.Store) error {
	if a.cfg.AdminEmail == "" {
		return nil
	}
	hash, err := HashPassword(a.cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	existing, err := s.GetUserByEmail(ctx, a.cfg.AdminEmail)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	now := a.now()
	admin := fleet.NewAdmin("admin", "Administrateur", a.cfg.AdminEmail)
	admin.CreatedAt = now
	if existing != nil {
		if !existing.IsAdmin() {
			return fmt.Errorf("bootstrap admin: %s belongs to a rider", a.cfg.AdminEmail)
		}
		admin = *existing
	}
	admin.PasswordHash = hash
	admin.UpdatedAt = now
	if err := s.SaveUser(ctx, admin); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	log.Printf("[Auth] Bootstrap admin %s ready", admin.Email)
	return nil
}

// Login checks credentials and opens a session.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, *Context, error) {
	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	now := a.now()
	session := fleet.Session{
		ID:        fleet.NewSessionID(),
		UserID:    user.ID,
		Language:  a.cfg.DefaultLanguage,
		CreatedAt: now,
		ExpiresAt: now.Add(a.cfg.SessionTTL),
	}
	if err := a.store.SaveSession(ctx, session); err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}

	token, err := a.sign(*user, session)
	if err != nil {
		return "", nil, err
	}
	log.Printf("[Auth] %s %s logged in", user.Role, user.Email)
	return token, &Context{User: *user, Session: session}, nil
}

func (a *Authenticator) sign(user fleet.User, session fleet.Session) (string, error) {
	c := claims{
		SessionID: string(session.ID),
		Role:      string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user.ID),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			Issuer:    "fleetlog",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a token into the caller's Context.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Context, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return a.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidToken
	}

	session, err := a.store.GetSession(ctx, fleet.SessionID(c.SessionID))
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if session == nil || session.UserID != fleet.UserID(c.Subject) {
		return nil, ErrSessionExpired
	}
	if session.Expired(a.now()) {
		if err := a.store.DeleteSession(ctx, session.ID); err != nil {
			log.Printf("[Auth] Failed to drop expired session %s: %v", session.ID, err)
		}
		return nil, ErrSessionExpired
	}

	user, err := a.store.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if user == nil {
		return nil, ErrSessionExpired
	}
	return &Context{User: *user, Session: *session}, nil
}

// Logout ends the session.
func (a *Authenticator) Logout(ctx context.Context, c *Context) error {
	if err := a.store.DeleteSession(ctx, c.Session.ID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// SetLanguage changes the session language and saves it.
func (a *Authenticator) SetLanguage(ctx context.Context, c *Context, lang fleet.Language) error {
	if !lang.Valid() {
		return &fleet.ValidationError{Field: "language", Message: "must be fr or en"}
	}
	c.Session.Language = lang
	if err := a.store.SaveSession(ctx, c.Session); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

// SweepExpired deletes every expired session.
func (a *Authenticator) SweepExpired(ctx context.Context) (int, error) {
	return a.store.DeleteExpiredSessions(ctx, a.now())
}
