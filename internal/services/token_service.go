package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/posi-ecosystem/fati-backend/internal/config"
)

// TokenService issues and validates account JWTs. Revoked tokens are kept in
// Redis until they would have expired anyway.
type TokenService struct {
	secret []byte
	expiry time.Duration
	redis  *redis.Client
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig, redisClient *redis.Client) *TokenService {
	return &TokenService{
		secret: []byte(cfg.SecretKey),
		expiry: cfg.Expiry,
		redis:  redisClient,
		now:    time.Now,
	}
}

func (s *TokenService) Issue(accountID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": accountID,
		"jti":     uuid.NewString(),
		"iat":     jwt.NewNumericDate(now),
		"exp":     jwt.NewNumericDate(now.Add(s.expiry)),
	})
	return token.SignedString(s.secret)
}

// Validate returns the account id carried by a valid, unrevoked token.
func (s *TokenService) Validate(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}

	accountID, _ := claims["user_id"].(string)
	if accountID == "" {
		return "", fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
	}

	if s.redis != nil {
		revoked, err := s.redis.Exists(ctx, blacklistKey(tokenString)).Result()
		if err != nil {
			log.Printf("[AUTH] Token blacklist lookup failed: %v", err)
		} else if revoked > 0 {
			return "", fmt.Errorf("%w: token revoked", ErrInvalidToken)
		}
	}
	return accountID, nil
}

// Revoke blacklists the token for the rest of its lifetime. Without Redis it
// is a no-op.
func (s *TokenService) Revoke(ctx context.Context, tokenString string) error {
	if s.redis == nil {
		return nil
	}

	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}

	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, blacklistKey(tokenString), "1", ttl).Err()
}

func (s *TokenService) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}
