package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryArchiveEvictsOldest(t *testing.T) {
	a := NewMemoryArchive(2)
	ctx := context.Background()

	obj, err := a.Put(ctx, "weather/1/a.json", []byte(`{"a":1}`), "application/json")
	require.NoError(t, err)
	require.Equal(t, int64(7), obj.Size)
	require.NotEmpty(t, obj.ETag)

	_, err = a.Put(ctx, "weather/1/b.json", []byte(`{}`), "application/json")
	require.NoError(t, err)
	_, err = a.Put(ctx, "weather/1/c.json", []byte(`{}`), "application/json")
	require.NoError(t, err)

	_, ok := a.Get("weather/1/a.json")
	require.False(t, ok)
	data, ok := a.Get("weather/1/c.json")
	require.True(t, ok)
	require.Equal(t, []byte(`{}`), data)
}

func TestDiscardReportsMetadata(t *testing.T) {
	obj, err := Discard{}.Put(context.Background(), "k", []byte("abc"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, "k", obj.Key)
	require.Equal(t, int64(3), obj.Size)
}

func TestSanitizeEndpoint(t *testing.T) {
	require.Equal(t, "abc.r2.cloudflarestorage.com", sanitizeEndpoint("https://abc.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "localhost:9000", sanitizeEndpoint(" http://localhost:9000 "))
	require.Equal(t, "", sanitizeEndpoint(""))
}

func TestNewS3ArchiveRequiresEndpoint(t *testing.T) {
	_, err := NewS3Archive("", "key", "secret", "bucket", "auto", nil)
	require.Error(t, err)
}
