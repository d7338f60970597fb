package models

// TrackSummary is a track rendered for output, with its release date already formatted.
type TrackSummary struct {
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	ReleaseDate string   `json:"releaseDate"`
	Album       string   `json:"album"`
}

// SortResult describes a completed sort.
//
// Oldest and Newest hold the first and last entries of Tracks. After a descending sort they are swapped,
// so Oldest is the most recent release; use [SortResult.Chronological] for the actual release range.
type SortResult struct {
	PlaylistID      string         `json:"playlistId"`
	PlaylistName    string         `json:"playlistName"`
	Direction       Direction      `json:"direction"`
	TracksProcessed int            `json:"tracksProcessed"`
	Oldest          *TrackSummary  `json:"oldestTrack,omitempty"`
	Newest          *TrackSummary  `json:"newestTrack,omitempty"`
	Tracks          []TrackSummary `json:"sortedTracks"`
	BatchesApplied  int            `json:"batchesApplied"`
}

// Chronological returns the earliest and latest released tracks regardless of direction.
func (r *SortResult) Chronological() (oldest, newest *TrackSummary) {
	if r.Direction == Descending {
		return r.Newest, r.Oldest
	}
	return r.Oldest, r.Newest
}

// DateRange spans the dated tracks of a playlist. Dates are ISO "2006-01-02" strings.
type DateRange struct {
	Oldest    string `json:"oldest"`
	Newest    string `json:"newest"`
	SpanYears int    `json:"spanYears"`
}

// DecadeCount is one bucket of the decade histogram, labeled like "1990s".
type DecadeCount struct {
	Decade string `json:"decade"`
	Count  int    `json:"count"`
}

// YearCount is one entry of the top years histogram.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Statistics summarizes the release dates of a playlist.
type Statistics struct {
	PlaylistID         string        `json:"playlistId,omitempty"`
	PlaylistName       string        `json:"playlistName,omitempty"`
	TotalTracks        int           `json:"totalTracks"`
	TracksWithDates    int           `json:"tracksWithDates"`
	DateRange          DateRange     `json:"dateRange"`
	DecadeDistribution []DecadeCount `json:"decadeDistribution"`
	TopYears           []YearCount   `json:"topYears"`
}
