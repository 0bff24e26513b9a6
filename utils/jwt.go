package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"paylink/config"

	"github.com/golang-jwt/jwt/v5"
	redis "github.com/redis/go-redis/v9"
)

type contextKey string

const RequestIDKey = contextKey("requestID")

const revokedPrefix = "jwt:blacklist:"

// AccessClaims are the claims the payment API reads from an access token.
type AccessClaims struct {
	UserID    uint
	Role      string
	Email     string
	JTI       string
	ExpiresAt time.Time
}

// Tokens validates and mints HS256 access tokens. Revocation is checked in
// Redis when a client is configured.
type Tokens struct {
	cfg   config.JWTConfig
	redis *redis.Client
}

func NewTokens(cfg config.JWTConfig, rc *redis.Client) *Tokens {
	return &Tokens{cfg: cfg, redis: rc}
}

// ValidateAccessToken checks signature, exp/nbf, aud, iss and revocation.
func (t *Tokens) ValidateAccessToken(ctx context.Context, tokenStr string) (*AccessClaims, error) {
	if t.cfg.Secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	opts := []jwt.ParserOption{
		// exact HS256 only, no algorithm confusion
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if t.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(t.cfg.Audience))
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(t.cfg.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, jwt.ErrTokenExpired
		}
		return nil, errors.New("invalid token")
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	out := &AccessClaims{}
	id, err := claimUint(claims["id"])
	if err != nil || id == 0 {
		return nil, errors.New("invalid token payload")
	}
	out.UserID = id
	out.Role, _ = claims["role"].(string)
	out.Email, _ = claims["email"].(string)
	out.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	if out.JTI != "" && t.redis != nil {
		res, err := t.redis.Get(ctx, revokedPrefix+out.JTI).Result()
		if err == nil && res == "1" {
			return nil, errors.New("token revoked")
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			// do not fail auth because of a redis outage
			log.Printf("[auth] revocation lookup failed: %v", err)
		}
	}
	return out, nil
}

// GenerateAccessToken issues a token carrying id, role and email.
func (t *Tokens) GenerateAccessToken(userID uint, role, email string, expiry time.Duration) (string, error) {
	if t.cfg.Secret == "" {
		return "", errors.New("JWT_SECRET is not set")
	}
	jti, err := generateJTI(16)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"id":    userID,
		"role":  role,
		"email": email,
		"exp":   now.Add(expiry).Unix(),
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"jti":   jti,
	}
	if t.cfg.Audience != "" {
		claims["aud"] = t.cfg.Audience
	}
	if t.cfg.Issuer != "" {
		claims["iss"] = t.cfg.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.Secret))
}

// RevokeJTI blacklists a token id until ttl elapses.
func (t *Tokens) RevokeJTI(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("empty jti")
	}
	if t.redis == nil {
		return errors.New("no revocation store configured")
	}
	return t.redis.Set(ctx, revokedPrefix+jti, "1", ttl).Err()
}

func claimUint(raw interface{}) (uint, error) {
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return 0, errors.New("negative id")
		}
		return uint(v), nil
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		return uint(n), err
	}
	return 0, fmt.Errorf("unsupported id claim %T", raw)
}

// generateJTI creates a random hex identifier used as JWT ID
func generateJTI(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
