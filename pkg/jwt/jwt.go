package jwt

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/andressep95/verification-service/internal/domain"
)

var (
	ErrInvalidSigningMethod = errors.New("unexpected signing method")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidTokenType     = errors.New("invalid token type")
)

// TokenService issues and checks the bearer tokens bound to one
// verification session.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	keyID      string
	issuer     string
	now        func() time.Time
}

func NewTokenService(privateKeyPEM, publicKeyPEM []byte, issuer string) (*TokenService, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}

	return &TokenService{
		privateKey: privateKey,
		publicKey:  publicKey,
		keyID:      thumbprint(publicKey),
		issuer:     issuer,
		now:        time.Now,
	}, nil
}

// GenerateSessionToken signs a token for sessionID valid for ttl.
func (s *TokenService) GenerateSessionToken(sessionID, owner string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		SessionID:   sessionID,
		APIKeyOwner: owner,
		TokenType:   domain.TokenTypeSession,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign session token")
	}

	return signed, expiresAt, nil
}

func (s *TokenService) ValidateToken(tokenString string) (*domain.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &domain.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return s.publicKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*domain.Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != domain.TokenTypeSession || claims.SessionID == "" {
		return nil, ErrInvalidTokenType
	}

	return claims, nil
}

// PublicKey is published through the JWKS endpoint.
func (s *TokenService) PublicKey() *rsa.PublicKey {
	return s.publicKey
}

// KeyID identifies the signing key in token headers and the JWKS.
func (s *TokenService) KeyID() string {
	return s.keyID
}

func thumbprint(key *rsa.PublicKey) string {
	sum := sha256.Sum256(key.N.Bytes())
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}
