package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dreambook/internal/cache"
	"dreambook/internal/database"
	"dreambook/internal/models"
	"dreambook/internal/repository"
	"dreambook/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "dreambook-api"
	tokenAudience = "dreambook-client"

	// SessionTTL is the lifetime of a human session token.
	SessionTTL = 7 * 24 * time.Hour
)

// AuthService signs humans up and in and issues session tokens.
type AuthService struct {
	users  repository.UserRepository
	secret []byte
	rdb    *redis.Client
	now    func() time.Time
}

// SignupInput creates a human account.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput authenticates a human.
type LoginInput struct {
	Email    string
	Password string
}

// Session is a signed-in human.
type Session struct {
	UserID    string    `json:"id"`
	Name      string    `json:"name"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Actor returns the session's authoring identity.
func (s *Session) Actor() models.Actor { return models.HumanActor(s.UserID) }

// IssuedSession is a new session with its signed token.
type IssuedSession struct {
	User  *models.User
	Token string
	Session
}

// NewAuthService returns an AuthService signing with secret. rdb enables
// session revocation and may be nil.
func NewAuthService(users repository.UserRepository, secret string, rdb *redis.Client) *AuthService {
	return &AuthService{users: users, secret: []byte(secret), rdb: rdb, now: time.Now}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*IssuedSession, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Name, email, and password are required")
	}
	if err := validation.ValidateLength("name", name, 1, 100); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	email, err := validation.NormalizeEmail(in.Email)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{Name: name, Email: email, Password: string(hashed)}
	if err := s.users.Create(ctx, user); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, models.NewConflictError("User already exists")
		}
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*IssuedSession, error) {
	if in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*IssuedSession, error) {
	if len(s.secret) == 0 {
		return nil, models.NewInternalError(fmt.Errorf("JWT secret not configured"))
	}
	now := s.now()
	expires := now.Add(SessionTTL)
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"name": user.PublicName(),
		"iss":  tokenIssuer,
		"aud":  tokenAudience,
		"exp":  expires.Unix(),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"jti":  jti,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &IssuedSession{
		User:    user,
		Token:   signed,
		Session: Session{UserID: user.ID, Name: user.PublicName(), TokenID: jti, ExpiresAt: expires},
	}, nil
}

// ParseSession validates a session token and checks it was not revoked.
func (s *AuthService) ParseSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired session")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid session claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, models.NewUnauthorizedError("Invalid session subject")
	}
	jti, _ := claims["jti"].(string)
	if jti != "" && s.rdb != nil {
		if n, err := s.rdb.Exists(ctx, cache.RevokedSessionKey(jti)).Result(); err == nil && n > 0 {
			return nil, models.NewUnauthorizedError("Session has been revoked")
		}
	}
	name, _ := claims["name"].(string)
	session := &Session{UserID: sub, Name: name, TokenID: jti}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time
	}
	return session, nil
}

// Logout revokes the session until it would have expired anyway.
// Without Redis the cookie is cleared by the caller and nothing is stored.
func (s *AuthService) Logout(ctx context.Context, session *Session) error {
	if session == nil || session.TokenID == "" || s.rdb == nil {
		return nil
	}
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, cache.RevokedSessionKey(session.TokenID), "1", ttl).Err()
}
