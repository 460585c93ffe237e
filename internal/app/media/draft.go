package media

import "github.com/carhop-rentals/booking-verify-api/internal/domain"

// File is one selected upload held in memory until submission.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

func (f File) Size() int64 { return int64(len(f.Body)) }

// Draft is the set of files attached so far. Its methods return a new Draft and
// never modify the receiver.
type Draft struct {
	photos map[domain.PhotoSlot]File
	video  *File
}

func (d Draft) WithPhoto(slot domain.PhotoSlot, f File) Draft {
	next := make(map[domain.PhotoSlot]File, len(d.photos)+1)
	for k, v := range d.photos {
		next[k] = v
	}
	next[slot] = f
	return Draft{photos: next, video: d.video}
}

func (d Draft) WithVideo(f File) Draft {
	return Draft{photos: d.photos, video: &f}
}

func (d Draft) Photo(slot domain.PhotoSlot) (File, bool) {
	f, ok := d.photos[slot]
	return f, ok
}

func (d Draft) Video() (File, bool) {
	if d.video == nil {
		return File{}, false
	}
	return *d.video, true
}

// Missing returns the keys of empty slots in schema order, video last.
func (d Draft) Missing() []string {
	var out []string
	for _, s := range domain.PhotoSlots {
		if _, ok := d.photos[s]; !ok {
			out = append(out, string(s))
		}
	}
	if d.video == nil {
		out = append(out, domain.VideoSlotKey)
	}
	return out
}

func (d Draft) Complete() bool { return len(d.Missing()) == 0 }

// Attached reports, per slot key, whether a file is present.
func (d Draft) Attached() map[string]bool {
	out := make(map[string]bool, len(domain.PhotoSlots)+1)
	for _, s := range domain.PhotoSlots {
		_, ok := d.photos[s]
		out[string(s)] = ok
	}
	out[domain.VideoSlotKey] = d.video != nil
	return out
}
