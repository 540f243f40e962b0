package itemscan

import (
	"io"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is what the scanner takes from a file's embedded tags.
type Metadata struct {
	CreationDate time.Time
	Comment      string
	HasPosition  bool
	Latitude     float64
	Longitude    float64
}

// ReadMetadata decodes EXIF from r. Files without EXIF yield an empty
// Metadata and no error.
func ReadMetadata(r io.Reader) Metadata {
	var m Metadata
	x, err := exif.Decode(r)
	if err != nil {
		return m
	}

	if dt, err := x.DateTime(); err == nil {
		m.CreationDate = dt
	}
	if lat, long, err := x.LatLong(); err == nil {
		m.HasPosition = true
		m.Latitude, m.Longitude = lat, long
	}
	if tag, err := x.Get(exif.ImageDescription); err == nil && tag != nil {
		if s, err := tag.StringVal(); err == nil {
			m.Comment = strings.TrimSpace(strings.TrimRight(s, "\x00"))
		}
	}
	return m
}
