// Package releasedate resolves catalog release dates of varying precision into comparable instants
// and human readable labels.
package releasedate

import (
	"fmt"
	"time"

	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/shared"
)

// Unknown is the label for a missing or unreadable date.
const Unknown = "Unknown"

// Sentinel is the instant assigned to tracks without a usable release date.
// It compares after every date the catalog can report.
var Sentinel = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// MalformedDateError reports a date string that does not match its stated precision.
type MalformedDateError struct {
	Date      string
	Precision models.Precision
	Err       error
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("%v: %q is not a valid %s date", shared.ErrMalformedDate, e.Date, e.Precision)
}

func (e *MalformedDateError) Unwrap() []error {
	return []error{shared.ErrMalformedDate, e.Err}
}

// layout holds the parse and display layouts for one precision.
type layout struct {
	parse   string
	display string
}

var layouts = map[models.Precision]layout{
	models.PrecisionYear:  {parse: "2006", display: "2006"},
	models.PrecisionMonth: {parse: "2006-01", display: "January 2006"},
	models.PrecisionDay:   {parse: "2006-01-02", display: "January 2, 2006"},
}

// normalize maps an empty or unrecognized precision to [models.PrecisionDay].
func normalize(p models.Precision) models.Precision {
	if _, ok := layouts[p]; ok {
		return p
	}
	return models.PrecisionDay
}

// Resolve converts date at precision into an instant in UTC.
//
// Year dates resolve to January 1 and month dates to the first of the month.
// An empty date resolves to [Sentinel]. A date that does not match its precision
// returns a [*MalformedDateError].
func Resolve(date string, precision models.Precision) (time.Time, error) {
	if date == "" {
		return Sentinel, nil
	}

	p := normalize(precision)
	t, err := time.Parse(layouts[p].parse, date)
	if err != nil {
		return Sentinel, &MalformedDateError{Date: date, Precision: p, Err: err}
	}
	return t, nil
}

// ResolveOrSentinel is [Resolve] with malformed dates degraded to [Sentinel].
// The second result is false only for an empty or malformed date, so a real date equal to the
// sentinel still counts as usable.
func ResolveOrSentinel(date string, precision models.Precision) (time.Time, bool) {
	if date == "" {
		return Sentinel, false
	}
	t, err := Resolve(date, precision)
	if err != nil {
		return Sentinel, false
	}
	return t, true
}

// Format renders date for display: "2020", "March 1999" or "March 15, 1999" depending on precision.
// Missing and malformed dates render as [Unknown].
func Format(date string, precision models.Precision) string {
	t, ok := ResolveOrSentinel(date, precision)
	if !ok {
		return Unknown
	}
	return t.Format(layouts[normalize(precision)].display)
}

// Of resolves the release instant of a track's album.
func Of(t models.Track) (time.Time, bool) {
	return ResolveOrSentinel(t.Album.ReleaseDate, t.Album.Precision)
}

// FormatTrack renders the release date of a track's album.
func FormatTrack(t models.Track) string {
	return Format(t.Album.ReleaseDate, t.Album.Precision)
}
