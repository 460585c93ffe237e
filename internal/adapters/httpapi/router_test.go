package httpapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaRouteSetsCacheControl(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "id-1", "BK-1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "id-1", "BK-1", "dashboard_1.jpg"), []byte("jpeg"), 0o644))

	a := newTestAPI(t, nil)
	h := NewRouter(NewServer(a.ctl, nil, nil, nil), RouterOptions{MediaDir: dir})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/id-1/BK-1/dashboard_1.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "jpeg", rec.Body.String())
}
