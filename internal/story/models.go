package story

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalIDPrefix marks records created on this device that the server has not
// accepted yet.
const LocalIDPrefix = "local_"

// Record is a cached story.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PhotoURL    string    `json:"photoUrl"` // remote URL, or a data: URL while pending
	CreatedAt   time.Time `json:"createdAt"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`

	// Local-only state. The server never sends these.
	IsFavorite      bool `json:"isFavorite"`
	IsPendingUpload bool `json:"isPendingUpload,omitempty"`
}

// HasLocation reports whether both coordinates are set.
func (r Record) HasLocation() bool {
	return r.Lat != nil && r.Lon != nil
}

// IsLocal reports whether the record was created on this device.
func (r Record) IsLocal() bool {
	return IsLocalID(r.ID)
}

// Equal reports whether two records hold the same values.
func (r Record) Equal(o Record) bool {
	return r.ID == o.ID &&
		r.Name == o.Name &&
		r.Description == o.Description &&
		r.PhotoURL == o.PhotoURL &&
		r.CreatedAt.Equal(o.CreatedAt) &&
		equalCoord(r.Lat, o.Lat) &&
		equalCoord(r.Lon, o.Lon) &&
		r.IsFavorite == o.IsFavorite &&
		r.IsPendingUpload == o.IsPendingUpload
}

func equalCoord(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// NewLocalID returns an ID for a record created while offline. The UUIDv7
// suffix is time ordered and cannot collide with server-issued IDs.
func NewLocalID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return LocalIDPrefix + id.String()
}

// IsLocalID reports whether id was produced by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// Coord returns a pointer to v, for filling Lat/Lon.
func Coord(v float64) *float64 {
	return &v
}
