package media

import (
	"fmt"
	"strings"
)

// Error codes for rejected files and incomplete submissions.
const (
	CodePhotoTooLarge   = "PHOTO_TOO_LARGE"
	CodeNotAnImage      = "NOT_AN_IMAGE"
	CodeVideoTooLarge   = "VIDEO_TOO_LARGE"
	CodeNotAVideo       = "NOT_A_VIDEO"
	CodeVideoTooLong    = "VIDEO_TOO_LONG"
	CodeVideoUnreadable = "VIDEO_UNREADABLE"
	CodeIncomplete      = "MEDIA_INCOMPLETE"
)

// Error is a media rejection the user can fix. The slot it concerns is left unchanged.
type Error struct {
	Code    string
	Slot    string
	Message string
	// Missing lists slot keys when Code is CodeIncomplete.
	Missing []string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Incomplete returns a CodeIncomplete error naming the empty slots of d, or nil
// when every slot is filled.
func Incomplete(d Draft) *Error {
	missing := d.Missing()
	if len(missing) == 0 {
		return nil
	}
	return &Error{
		Code:    CodeIncomplete,
		Message: "Please upload all required photos and the surrounding video before completing the ride.",
		Missing: missing,
	}
}

// UploadError fails a whole submission. Locators already written are reported as
// orphans; nothing deletes them.
type UploadError struct {
	Path     string
	Err      error
	Orphaned []string
}

func (e *UploadError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("upload %s: %v", e.Path, e.Err)
	if len(e.Orphaned) > 0 {
		msg += fmt.Sprintf(" (%d uploaded files left behind: %s)", len(e.Orphaned), strings.Join(e.Orphaned, ", "))
	}
	return msg
}

func (e *UploadError) Unwrap() error { return e.Err }
