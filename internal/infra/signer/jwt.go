// Package signer mints and verifies signed upload URLs. A signed URL embeds
// a short-lived token scoped to one object and method, so clients can write
// directly to the store without ever holding store credentials.
package signer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ahrav/upload-armada/internal/domain/uploads"
)

var _ uploads.StorageSigner = (*URLSigner)(nil)

// ErrTokenScope indicates a token that is valid but signed for a different
// object or method.
var ErrTokenScope = errors.New("token not valid for this object")

// writeClaims scope a token to a single object write.
type writeClaims struct {
	Bucket      string `json:"bkt"`
	Object      string `json:"obj"`
	Method      string `json:"mtd"`
	ContentType string `json:"cty,omitempty"`
	jwt.RegisteredClaims
}

// URLSigner mints signed upload URLs against the store's HTTP endpoint
// using HMAC tokens.
type URLSigner struct {
	baseURL string
	secret  []byte
	issuer  string
	now     func() time.Time
}

// NewURLSigner creates a signer for the store endpoint at baseURL.
func NewURLSigner(baseURL string, secret []byte, issuer string) *URLSigner {
	return &URLSigner{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		issuer:  issuer,
		now:     time.Now,
	}
}

// SignUpload creates a write permission for the given object. The declared
// content type is bound into the token so the payload cannot be swapped
// after issuance.
func (s *URLSigner) SignUpload(
	ctx context.Context,
	bucket, objectKey, contentType string,
	ttl time.Duration,
) (uploads.WritePermission, error) {
	if err := ctx.Err(); err != nil {
		return uploads.WritePermission{}, err
	}

	now := s.now()
	expiresAt := now.Add(ttl)

	claims := writeClaims{
		Bucket:      bucket,
		Object:      objectKey,
		Method:      "PUT",
		ContentType: contentType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return uploads.WritePermission{}, fmt.Errorf("sign upload token: %w", err)
	}

	uploadURL := fmt.Sprintf("%s/%s/%s?token=%s",
		s.baseURL, url.PathEscape(bucket), escapeObjectKey(objectKey), url.QueryEscape(token))

	headers := map[string]string{}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}

	return uploads.WritePermission{
		URL:       uploadURL,
		Method:    "PUT",
		Headers:   headers,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyUpload checks a token against the object and method it is being
// used for. The store edge calls this before accepting bytes.
func (s *URLSigner) VerifyUpload(tokenStr, bucket, objectKey, method string) error {
	var claims writeClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return fmt.Errorf("parse upload token: %w", err)
	}

	if claims.Bucket != bucket || claims.Object != objectKey || claims.Method != method {
		return ErrTokenScope
	}
	return nil
}

// escapeObjectKey escapes each path segment of an object key while keeping
// the slashes that separate them.
func escapeObjectKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
