// Package media validates ride-completion photos and video and submits them as
// one unit: every upload succeeds and a record is written, or nothing is recorded.
package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/carhop-rentals/booking-verify-api/internal/app/audit"
	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
	clockport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/clock"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/objectstore"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/ridecompletionrepo"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/videoprobe"
)

const (
	MaxPhotoBytes    = 10 << 20
	MaxVideoBytes    = 50 << 20
	MaxVideoDuration = 120 * time.Second

	CacheControl = "max-age=3600"
)

type Pipeline struct {
	store    objectstore.Store
	prober   videoprobe.Prober
	rides    ridecompletionrepo.Repository
	bookings bookingrepo.Repository
	tracker  *audit.Tracker
	clk      clockport.Clock
	log      *zap.Logger

	newRideCompletionID func() domain.RideCompletionID
}

func NewPipeline(
	store objectstore.Store,
	prober videoprobe.Prober,
	rides ridecompletionrepo.Repository,
	bookings bookingrepo.Repository,
	tracker *audit.Tracker,
	clk clockport.Clock,
	log *zap.Logger,
) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		prober:   prober,
		rides:    rides,
		bookings: bookings,
		tracker:  tracker,
		clk:      clk,
		log:      log,
		newRideCompletionID: func() domain.RideCompletionID {
			return domain.RideCompletionID(uuid.NewString())
		},
	}
}

// CheckPhoto accepts image/* files up to MaxPhotoBytes.
func (p *Pipeline) CheckPhoto(slot domain.PhotoSlot, f File) error {
	if f.Size() > MaxPhotoBytes {
		return &Error{Code: CodePhotoTooLarge, Slot: string(slot), Message: "Photo size must be less than 10MB"}
	}
	if !hasTypePrefix(f.ContentType, "image/") {
		return &Error{Code: CodeNotAnImage, Slot: string(slot), Message: "Please upload only image files"}
	}
	return nil
}

// CheckVideo accepts video/* files up to MaxVideoBytes whose container reports a
// duration of at most MaxVideoDuration. The size and type checks run before the
// probe so oversized files are never decoded.
func (p *Pipeline) CheckVideo(ctx context.Context, f File) error {
	slot := domain.VideoSlotKey
	if f.Size() > MaxVideoBytes {
		return &Error{Code: CodeVideoTooLarge, Slot: slot, Message: "Video size must be less than 50MB"}
	}
	if !hasTypePrefix(f.ContentType, "video/") {
		return &Error{Code: CodeNotAVideo, Slot: slot, Message: "Please upload only video files"}
	}

	d, err := p.prober.Duration(ctx, f.ContentType, f.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.log.Info("video duration probe failed", zap.String("contentType", f.ContentType), zap.Error(err))
		return &Error{Code: CodeVideoUnreadable, Slot: slot, Message: "Could not read the video length. Please upload an MP4 or MOV file"}
	}
	if d > MaxVideoDuration {
		return &Error{Code: CodeVideoTooLong, Slot: slot, Message: "Video must be less than 2 minutes long"}
	}
	return nil
}

type SubmitInput struct {
	IdentityID domain.IdentityID
	Email      string
	BookingID  domain.BookingID
	Draft      Draft
}

type upload struct {
	path string
	file File
}

// Submit uploads all eight files concurrently, then records the ride completion
// and marks the booking ride_completed. Missing slots are reported before any
// upload is attempted. A completion already recorded for the booking is reused,
// so a retry after a failed status update only repeats the status update.
func (p *Pipeline) Submit(ctx context.Context, in SubmitInput) (domain.RideCompletion, error) {
	if in.IdentityID == "" || in.BookingID == "" {
		return domain.RideCompletion{}, errors.New("user not authenticated or booking id missing")
	}
	if err := Incomplete(in.Draft); err != nil {
		return domain.RideCompletion{}, err
	}

	now := p.clk.Now()
	switch existing, err := p.rides.GetByBookingID(ctx, in.BookingID); {
	case err == nil:
		p.log.Info("ride completion already recorded; finishing booking", zap.String("bookingId", string(in.BookingID)))
		return p.finish(ctx, in, existing, now)
	case !errors.Is(err, ridecompletionrepo.ErrNotFound):
		return domain.RideCompletion{}, fmt.Errorf("look up ride completion: %w", err)
	}

	stamp := now.UnixMilli()
	uploads := make([]upload, 0, len(domain.PhotoSlots)+1)
	for _, s := range domain.PhotoSlots {
		f, _ := in.Draft.Photo(s)
		uploads = append(uploads, upload{path: objectPath(in.IdentityID, in.BookingID, string(s), stamp, f), file: f})
	}
	video, _ := in.Draft.Video()
	uploads = append(uploads, upload{path: objectPath(in.IdentityID, in.BookingID, domain.VideoSlotKey, stamp, video), file: video})

	locators, err := p.uploadAll(ctx, uploads)
	if err != nil {
		return domain.RideCompletion{}, err
	}

	photos := make([]domain.PhotoLocator, 0, len(domain.PhotoSlots))
	for i, s := range domain.PhotoSlots {
		photos = append(photos, domain.PhotoLocator{Slot: s, Locator: locators[i]})
	}
	rc := ridecompletionrepo.RideCompletion{
		ID:           p.newRideCompletionID(),
		BookingID:    in.BookingID,
		IdentityID:   in.IdentityID,
		Photos:       photos,
		VideoLocator: locators[len(locators)-1],
		SubmittedAt:  now,
	}
	if err := p.rides.Insert(ctx, rc); err != nil {
		if !errors.Is(err, ridecompletionrepo.ErrAlreadyExists) {
			return domain.RideCompletion{}, fmt.Errorf("record ride completion: %w", err)
		}
		// A concurrent submission for the same booking won; keep its record.
		existing, getErr := p.rides.GetByBookingID(ctx, in.BookingID)
		if getErr != nil {
			return domain.RideCompletion{}, fmt.Errorf("record ride completion: %w", err)
		}
		p.log.Warn("ride completion recorded concurrently; uploaded files left in storage",
			zap.String("bookingId", string(in.BookingID)),
			zap.Strings("orphaned", locators),
		)
		rc = existing
	}
	return p.finish(ctx, in, rc, now)
}

// finish marks the booking ride_completed for a recorded completion.
func (p *Pipeline) finish(ctx context.Context, in SubmitInput, rc ridecompletionrepo.RideCompletion, now time.Time) (domain.RideCompletion, error) {
	if err := p.bookings.UpdateStatus(ctx, in.BookingID, domain.BookingStatusRideCompleted, now); err != nil {
		return domain.RideCompletion{}, fmt.Errorf("update booking status: %w", err)
	}

	p.tracker.Track(ctx, in.Email, in.BookingID, auditlog.ActionRideCompleted, map[string]any{
		"photosUploaded":      len(rc.Photos),
		"videoUploaded":       rc.VideoLocator != "",
		"completionTimestamp": now.UTC().Format(time.RFC3339Nano),
	})

	return domain.RideCompletion{
		ID:           rc.ID,
		BookingID:    rc.BookingID,
		IdentityID:   rc.IdentityID,
		Photos:       rc.Photos,
		VideoLocator: rc.VideoLocator,
		SubmittedAt:  rc.SubmittedAt,
	}, nil
}

// uploadAll starts every upload together and waits for all of them to settle.
// Results keep the order of ups.
func (p *Pipeline) uploadAll(ctx context.Context, ups []upload) ([]string, error) {
	locators := make([]string, len(ups))
	errs := make([]error, len(ups))

	// Uploads report failures through errs so a failure does not cancel the others.
	var g errgroup.Group
	for i, u := range ups {
		i, u := i, u
		g.Go(func() error {
			loc, err := p.store.Put(ctx, objectstore.Object{
				Path:         u.path,
				ContentType:  u.file.ContentType,
				CacheControl: CacheControl,
				Upsert:       false,
				Body:         u.file.Body,
			})
			locators[i], errs[i] = loc, err
			return nil
		})
	}
	_ = g.Wait()

	var first *UploadError
	var orphaned []string
	for i, err := range errs {
		if err != nil {
			if first == nil {
				first = &UploadError{Path: ups[i].path, Err: err}
			}
			continue
		}
		orphaned = append(orphaned, locators[i])
	}
	if first == nil {
		return locators, nil
	}
	first.Orphaned = orphaned
	if len(orphaned) > 0 {
		p.log.Warn("ride media upload failed; uploaded files left in storage",
			zap.String("failedPath", first.Path),
			zap.Strings("orphaned", orphaned),
			zap.Error(first.Err),
		)
	}
	return nil, first
}

func objectPath(identity domain.IdentityID, booking domain.BookingID, key string, stamp int64, f File) string {
	return fmt.Sprintf("%s/%s/%s_%d.%s", identity, booking, key, stamp, extension(f))
}

// extension is the text after the last dot of the original name, falling back to
// the content subtype.
func extension(f File) string {
	if ext := strings.TrimPrefix(filepath.Ext(f.Name), "."); ext != "" {
		return strings.ToLower(ext)
	}
	ct := strings.SplitN(f.ContentType, ";", 2)[0]
	if i := strings.IndexByte(ct, '/'); i >= 0 && i < len(ct)-1 {
		return strings.ToLower(strings.TrimSpace(ct[i+1:]))
	}
	return "bin"
}

func hasTypePrefix(contentType, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), prefix)
}
