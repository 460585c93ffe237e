// Package mp4probe reads the movie header of ISO base media files (mp4, mov,
// m4v, 3gp) to find their duration without decoding any samples.
package mp4probe

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abema/go-mp4"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/videoprobe"
)

var supported = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/x-m4v":     true,
	"video/3gpp":      true,
	"video/3gpp2":     true,
}

type Prober struct{}

func New() Prober { return Prober{} }

var _ videoprobe.Prober = Prober{}

func (Prober) Duration(ctx context.Context, contentType string, body []byte) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !supported[ct] {
		return 0, fmt.Errorf("%w: %s", videoprobe.ErrUnsupportedFormat, ct)
	}

	info, err := mp4.Probe(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", videoprobe.ErrUnsupportedFormat, err)
	}
	if info.Timescale == 0 {
		return 0, fmt.Errorf("%w: movie header has zero timescale", videoprobe.ErrUnsupportedFormat)
	}
	// Split to avoid overflowing Duration for long files with fine timescales.
	secs := info.Duration / uint64(info.Timescale)
	rem := info.Duration % uint64(info.Timescale)
	return time.Duration(secs)*time.Second + time.Duration(rem)*time.Second/time.Duration(info.Timescale), nil
}
