package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyPair(t *testing.T) ([]byte, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return privPEM, pubPEM
}

func newService(t *testing.T) *TokenService {
	t.Helper()
	priv, pub := newKeyPair(t)
	svc, err := NewTokenService(priv, pub, "verification-test")
	require.NoError(t, err)
	return svc
}

func TestGenerateAndValidateSessionToken(t *testing.T) {
	svc := newService(t)

	token, expiresAt, err := svc.GenerateSessionToken("session-abc", "owner-1", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "session-abc", claims.SessionID)
	assert.Equal(t, "owner-1", claims.APIKeyOwner)
	assert.Equal(t, "session-abc", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := newService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := svc.GenerateSessionToken("session-abc", "owner-1", time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateTokenFromOtherKey(t *testing.T) {
	issuer := newService(t)
	verifier := newService(t)

	token, _, err := issuer.GenerateSessionToken("session-abc", "owner-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsHMAC(t *testing.T) {
	svc := newService(t)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid":  "session-abc",
		"type": "session",
		"iss":  "verification-test",
	})
	signed, err := forged.SignedString([]byte("guessable"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	require.Error(t, err)
}

func TestNewTokenServiceBadPEM(t *testing.T) {
	_, err := NewTokenService([]byte("nope"), []byte("nope"), "x")
	require.Error(t, err)
}

func TestTokenCarriesKeyID(t *testing.T) {
	svc := newService(t)

	token, _, err := svc.GenerateSessionToken("session-abc", "owner-1", time.Hour)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, svc.KeyID(), parsed.Header["kid"])
	assert.Len(t, svc.KeyID(), 16)
	assert.NotNil(t, svc.PublicKey())
}
