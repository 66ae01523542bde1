package auth

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	s := NewAssetSigner("http://assets.local/", []byte("test-secret"), time.Hour)

	signedURL, expiresIn, err := s.SignedURL("media", "masks/gelede.jpg")
	require.NoError(t, err)
	assert.Equal(t, 3600, expiresIn)
	assert.True(t, strings.HasPrefix(signedURL, "http://assets.local/assets/media/masks/gelede.jpg?token="))

	u, err := url.Parse(signedURL)
	require.NoError(t, err)
	claims, err := s.Verify(u.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "media", claims.Bucket)
	assert.Equal(t, "masks/gelede.jpg", claims.Path)
}

func TestSignedURLRequiresBucketAndPath(t *testing.T) {
	s := NewAssetSigner("http://assets.local", []byte("test-secret"), time.Hour)
	_, _, err := s.SignedURL("", "x")
	assert.Error(t, err)
	_, _, err = s.SignedURL("media", "")
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewAssetSigner("http://assets.local", []byte("secret-a"), time.Hour)
	verifier := NewAssetSigner("http://assets.local", []byte("secret-b"), time.Hour)

	signedURL, _, err := issuer.SignedURL("media", "x")
	require.NoError(t, err)
	u, err := url.Parse(signedURL)
	require.NoError(t, err)

	_, err = verifier.Verify(u.Query().Get("token"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := NewAssetSigner("http://assets.local", []byte("test-secret"), time.Hour)
	now := time.Now()
	claims := AssetClaims{
		Bucket: "media",
		Path:   "x",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	require.NoError(t, err)

	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDefaultTTLClamp(t *testing.T) {
	s := NewAssetSigner("http://assets.local", []byte("test-secret"), 0)
	assert.Equal(t, defaultSignedURLExpiry, s.TTL)
}
