package auth

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultSignedURLExpiry = 3600 * time.Second

// AssetClaims bind a signed URL token to one bucket/path pair.
type AssetClaims struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	jwt.RegisteredClaims
}

// AssetSigner issues time-limited signed URLs for binary assets. The URL
// embeds an HS256 token scoped to the asset's bucket and path, so whoever
// serves the bytes can verify without a store round trip.
type AssetSigner struct {
	BaseURL string
	Secret  []byte
	TTL     time.Duration
}

// NewAssetSigner builds a signer; ttl <= 0 falls back to one hour.
func NewAssetSigner(baseURL string, secret []byte, ttl time.Duration) *AssetSigner {
	if ttl <= 0 {
		ttl = defaultSignedURLExpiry
	}
	if len(secret) == 0 {
		secret = secretFromEnv()
	}
	return &AssetSigner{BaseURL: strings.TrimRight(baseURL, "/"), Secret: secret, TTL: ttl}
}

// NewAssetSignerFromEnv reads ASSET_BASE_URL, JWT_SECRET and
// SIGNED_URL_EXPIRY_SECONDS.
func NewAssetSignerFromEnv() *AssetSigner {
	ttl := defaultSignedURLExpiry
	if v := os.Getenv("SIGNED_URL_EXPIRY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Second
		}
	}
	return NewAssetSigner(os.Getenv("ASSET_BASE_URL"), secretFromEnv(), ttl)
}

func secretFromEnv() []byte {
	return secret()
}

// SignedURL returns the URL plus its validity in seconds.
func (s *AssetSigner) SignedURL(bucket, path string) (string, int, error) {
	if bucket == "" || path == "" {
		return "", 0, fmt.Errorf("bucket and path required")
	}
	now := time.Now()
	claims := AssetClaims{
		Bucket: bucket,
		Path:   path,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign asset url: %w", err)
	}
	base := s.BaseURL
	if base == "" {
		base = "http://127.0.0.1:8080"
	}
	u := fmt.Sprintf("%s/assets/%s/%s?token=%s", base, url.PathEscape(bucket), escapePath(path), url.QueryEscape(token))
	return u, int(s.TTL / time.Second), nil
}

// Verify parses a token previously issued by SignedURL.
func (s *AssetSigner) Verify(tokenStr string) (*AssetClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AssetClaims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalid
	}
	if claims, ok := token.Claims.(*AssetClaims); ok {
		return claims, nil
	}
	return nil, ErrInvalid
}

// escapePath escapes each segment but keeps the separators readable.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
