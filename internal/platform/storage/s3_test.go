package storage

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresigner(t *testing.T, public string) *Presigner {
	t.Helper()
	p, err := NewPresigner(context.Background(), Options{
		Endpoint:      "http://127.0.0.1:9000",
		Region:        "us-east-1",
		Bucket:        "media",
		AccessKey:     "minioadmin",
		SecretKey:     "minioadmin",
		PublicBaseURL: public,
		PresignTTL:    10 * time.Minute,
	})
	require.NoError(t, err)
	return p
}

func TestPresignUpload(t *testing.T) {
	p := newTestPresigner(t, "")

	up, err := p.PresignUpload(context.Background(), "uploads/a.png", "image/png")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, up.Method)
	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.Equal(t, "/media/uploads/a.png", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "http://127.0.0.1:9000/media/uploads/a.png", up.PublicURL)
}

func TestPublicURL_CustomBase(t *testing.T) {
	p := newTestPresigner(t, "https://cdn.example/")
	assert.Equal(t, "https://cdn.example/uploads/a.png", p.PublicURL("/uploads/a.png"))
}

func TestNewPresigner_RequiresBucket(t *testing.T) {
	_, err := NewPresigner(context.Background(), Options{Region: "us-east-1"})
	assert.Error(t, err)
}
