package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/objectstore"
)

func TestPut_WritesAndRefusesOverwrite(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, "https://media.example.com/ride-photos/")
	require.NoError(t, err)

	obj := objectstore.Object{
		Path:         "id-1/BK-1-X/exteriorFront_1700000000000.jpg",
		ContentType:  "image/jpeg",
		CacheControl: "max-age=3600",
		Body:         []byte("jpeg"),
	}
	loc, err := s.Put(context.Background(), obj)
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/ride-photos/id-1/BK-1-X/exteriorFront_1700000000000.jpg", loc)

	b, err := os.ReadFile(filepath.Join(root, "id-1", "BK-1-X", "exteriorFront_1700000000000.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(b))

	_, err = s.Put(context.Background(), obj)
	require.ErrorIs(t, err, objectstore.ErrExists)

	obj.Upsert = true
	obj.Body = []byte("jpeg2")
	_, err = s.Put(context.Background(), obj)
	require.NoError(t, err)
}

func TestPut_RejectsTraversal(t *testing.T) {
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), objectstore.Object{Path: "../escape.jpg", Body: []byte("x")})
	require.Error(t, err)
}
