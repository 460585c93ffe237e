package domain

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// SubjectID is the authenticated subject extracted from identity token claims (typically "sub").
// We model it as an opaque identifier: its format is controlled by the IdP.
type SubjectID string

// IdentityID is an internal identifier for an identity record.
type IdentityID string

// BookingID is the client-visible booking reference, e.g. BK-1718000000000-K3J9Q2ZXA.
type BookingID string

// RideCompletionID is an internal identifier for a ride completion record.
type RideCompletionID string

const (
	bookingIDPrefix    = "BK"
	bookingSuffixLen   = 9
	bookingSuffixRunes = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewBookingID returns BK-<unix millis>-<9 random base36 chars>, upper-cased.
func NewBookingID(now time.Time) BookingID {
	var sb strings.Builder
	sb.WriteString(bookingIDPrefix)
	sb.WriteByte('-')
	sb.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	sb.WriteByte('-')
	max := big.NewInt(int64(len(bookingSuffixRunes)))
	for i := 0; i < bookingSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms; fall back to the clock.
			n = big.NewInt(int64(uint64(now.UnixNano()>>uint(i)) % uint64(len(bookingSuffixRunes))))
		}
		sb.WriteByte(bookingSuffixRunes[n.Int64()])
	}
	return BookingID(strings.ToUpper(sb.String()))
}
