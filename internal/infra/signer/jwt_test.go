package signer

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(now time.Time) *URLSigner {
	s := NewURLSigner("https://store.internal", []byte("test-secret"), "upload-armada")
	s.now = func() time.Time { return now }
	return s
}

func tokenFromURL(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestSignUploadRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(now)

	perm, err := s.SignUpload(context.Background(), "uploads", "jobs/j1/items/i1/report.pdf", "application/pdf", 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "PUT", perm.Method)
	assert.Equal(t, "application/pdf", perm.Headers["Content-Type"])
	assert.Equal(t, now.Add(15*time.Minute), perm.ExpiresAt)
	assert.Contains(t, perm.URL, "https://store.internal/uploads/jobs/j1/items/i1/report.pdf?token=")

	token := tokenFromURL(t, perm.URL)
	assert.NoError(t, s.VerifyUpload(token, "uploads", "jobs/j1/items/i1/report.pdf", "PUT"))
}

func TestVerifyUploadRejectsWrongScope(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(now)

	perm, err := s.SignUpload(context.Background(), "uploads", "jobs/j1/items/i1/a.bin", "", time.Minute)
	require.NoError(t, err)
	token := tokenFromURL(t, perm.URL)

	assert.ErrorIs(t, s.VerifyUpload(token, "uploads", "jobs/j1/items/i2/b.bin", "PUT"), ErrTokenScope)
	assert.ErrorIs(t, s.VerifyUpload(token, "other", "jobs/j1/items/i1/a.bin", "PUT"), ErrTokenScope)
	assert.ErrorIs(t, s.VerifyUpload(token, "uploads", "jobs/j1/items/i1/a.bin", "DELETE"), ErrTokenScope)
}

func TestVerifyUploadRejectsExpiredToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(now)

	perm, err := s.SignUpload(context.Background(), "uploads", "jobs/j1/items/i1/a.bin", "", time.Minute)
	require.NoError(t, err)
	token := tokenFromURL(t, perm.URL)

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.Error(t, s.VerifyUpload(token, "uploads", "jobs/j1/items/i1/a.bin", "PUT"))
}

func TestVerifyUploadRejectsForeignSignature(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(now)
	other := NewURLSigner("https://store.internal", []byte("other-secret"), "upload-armada")
	other.now = s.now

	perm, err := other.SignUpload(context.Background(), "uploads", "jobs/j1/items/i1/a.bin", "", time.Minute)
	require.NoError(t, err)
	token := tokenFromURL(t, perm.URL)

	assert.Error(t, s.VerifyUpload(token, "uploads", "jobs/j1/items/i1/a.bin", "PUT"))
}

func TestSignUploadEscapesNames(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(now)

	perm, err := s.SignUpload(context.Background(), "uploads", "jobs/j1/items/i1/my report.pdf", "application/pdf", time.Minute)
	require.NoError(t, err)

	assert.Contains(t, perm.URL, "my%20report.pdf")
}
