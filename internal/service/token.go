package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeSession = "session"
	TokenTypeDevice  = "device"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs the opaque ids carried in the session and device
// cookies so clients cannot pick another browser's id.
type TokenIssuer struct {
	secret    []byte
	deviceTTL time.Duration
	now       Clock
}

func NewTokenIssuer(secret string, deviceTTL time.Duration, now Clock) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), deviceTTL: deviceTTL, now: now.orDefault()}
}

func NewClientID() string {
	return uuid.NewString()
}

func (t *TokenIssuer) DeviceTTL() time.Duration {
	return t.deviceTTL
}

// Issue signs id as a token of the given type. Session tokens do not
// expire on their own; device tokens live for the device TTL.
func (t *TokenIssuer) Issue(typ string, id string) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub": id,
		"typ": typ,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
	}
	if typ == TokenTypeDevice && t.deviceTTL > 0 {
		claims["exp"] = now.Add(t.deviceTTL).Unix()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Parse verifies token and returns the id it carries.
func (t *TokenIssuer) Parse(typ string, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	gotType, _ := claims["typ"].(string)
	if gotType != typ {
		return "", ErrInvalidToken
	}

	id, _ := claims["sub"].(string)
	if id == "" {
		return "", ErrInvalidToken
	}

	return id, nil
}
