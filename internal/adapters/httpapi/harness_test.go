package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memauditlog "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/auditlog"
	membookingrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/bookingrepo"
	memclock "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/clock"
	memidempotency "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/idempotency"
	memidentityrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/identityrepo"
	memobjectstore "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/objectstore"
	memridecompletionrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/ridecompletionrepo"
	"github.com/carhop-rentals/booking-verify-api/internal/app/audit"
	"github.com/carhop-rentals/booking-verify-api/internal/app/lifecycle"
	"github.com/carhop-rentals/booking-verify-api/internal/app/media"
	"github.com/carhop-rentals/booking-verify-api/internal/app/notify"
	"github.com/carhop-rentals/booking-verify-api/internal/app/reconcile"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/messaging"
)

type okSender struct {
	mu    sync.Mutex
	count int
}

func (s *okSender) Send(ctx context.Context, m messaging.Message) (messaging.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return messaging.Response{"result": true}, nil
}

type minuteProber struct{}

func (minuteProber) Duration(ctx context.Context, contentType string, body []byte) (time.Duration, error) {
	return time.Minute, nil
}

type testAPI struct {
	handler  http.Handler
	ctl      *lifecycle.Controller
	bookings bookingrepo.Repository
	store    *memobjectstore.Store
	tracker  *audit.Tracker
}

func newTestAPI(t *testing.T, auth func(http.Handler) http.Handler) testAPI {
	t.Helper()
	clk := memclock.NewManualClock(time.UnixMilli(1_700_000_000_000).UTC())
	identities := memidentityrepo.NewRepo()
	bookings := membookingrepo.NewRepo()
	store := memobjectstore.NewStore()
	tracker := audit.NewTracker(memauditlog.NewSink(), clk, zap.NewNop())

	ctl := lifecycle.NewController(lifecycle.Deps{
		Identities: identities,
		Bookings:   bookings,
		Reconciler: reconcile.NewReconciler(identities, bookings, nil, tracker, clk, nil),
		Notifier:   notify.NewDispatcher(&okSender{}, nil),
		Media:      media.NewPipeline(store, minuteProber{}, memridecompletionrepo.NewRepo(), bookings, tracker, clk, nil),
		Tracker:    tracker,
		Clock:      clk,
	})
	t.Cleanup(func() {
		ctl.Wait()
		tracker.Wait()
	})

	if auth == nil {
		auth = NewDevAuthMiddleware("")
	}
	srv := NewServer(ctl, memidempotency.NewStore(), clk, nil)
	return testAPI{
		handler:  NewRouter(srv, RouterOptions{AuthMiddleware: auth}),
		ctl:      ctl,
		bookings: bookings,
		store:    store,
		tracker:  tracker,
	}
}

type call struct {
	method  string
	path    string
	body    io.Reader
	headers map[string]string
}

func (a testAPI) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, c.body)
	if c.body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Debug-Email", "alice@example.com")
	req.Header.Set("X-Debug-Name", "Alice Rider")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) SessionState {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s SessionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er), rec.Body.String())
	return er
}

func multipartFile(t *testing.T, filename, contentType string, body []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
