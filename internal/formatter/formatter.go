// package formatter renders sort results, statistics and run history as text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/shared"
)

// Format is an output format.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts text/txt, markdown/md, csv and json. An empty string is [Text].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want text, markdown, csv or json)", shared.ErrInvalidArgument, s)
	}
}

// SortResult renders result in format.
func SortResult(result *models.SortResult, format Format) ([]byte, error) {
	switch format {
	case Markdown:
		return SortResultToMarkdown(result), nil
	case CSV:
		return SortResultToCSV(result)
	case JSON:
		return shared.MarshalJSON(result, true)
	default:
		return SortResultToText(result), nil
	}
}

// SortResultToText renders a summary followed by the numbered track order.
func SortResultToText(result *models.SortResult) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", result.PlaylistName)
	fmt.Fprintf(&buf, "Sorted %d tracks by release date (%s)\n", result.TracksProcessed, result.Direction.Label())
	oldest, newest := result.Chronological()
	if oldest != nil {
		fmt.Fprintf(&buf, "Oldest: %s (%s)\n", oldest.Name, oldest.ReleaseDate)
	}
	if newest != nil {
		fmt.Fprintf(&buf, "Newest: %s (%s)\n", newest.Name, newest.ReleaseDate)
	}

	buf.WriteString("\n")
	for i, t := range result.Tracks {
		fmt.Fprintf(&buf, "%d. %s by %s (%s)\n", i+1, t.Name, strings.Join(t.Artists, ", "), t.ReleaseDate)
	}

	return buf.Bytes()
}

// SortResultToMarkdown renders the result with a track table.
func SortResultToMarkdown(result *models.SortResult) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", result.PlaylistName)
	fmt.Fprintf(&buf, "**Tracks**: %d\n", result.TracksProcessed)
	fmt.Fprintf(&buf, "**Order**: %s\n", result.Direction.Label())
	oldest, newest := result.Chronological()
	if oldest != nil {
		fmt.Fprintf(&buf, "**Oldest**: %s (%s)\n", oldest.Name, oldest.ReleaseDate)
	}
	if newest != nil {
		fmt.Fprintf(&buf, "**Newest**: %s (%s)\n", newest.Name, newest.ReleaseDate)
	}

	buf.WriteString("\n## Tracks\n\n")
	buf.WriteString("| # | Track | Artists | Album | Released |\n")
	buf.WriteString("|---|-------|---------|-------|----------|\n")
	for i, t := range result.Tracks {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s |\n",
			i+1, escapeCell(t.Name), escapeCell(strings.Join(t.Artists, ", ")), escapeCell(t.Album), t.ReleaseDate)
	}

	return buf.Bytes()
}

// SortResultToCSV renders one row per track with columns: Position, Name, Artists, Album, Release Date
func SortResultToCSV(result *models.SortResult) ([]byte, error) {
	rows := make([][]string, 0, len(result.Tracks))
	for i, t := range result.Tracks {
		rows = append(rows, []string{strconv.Itoa(i + 1), t.Name, strings.Join(t.Artists, "; "), t.Album, t.ReleaseDate})
	}
	return writeCSV([]string{"Position", "Name", "Artists", "Album", "Release Date"}, rows)
}

// Statistics renders stats in format.
func Statistics(stats *models.Statistics, format Format) ([]byte, error) {
	switch format {
	case Markdown:
		return StatisticsToMarkdown(stats), nil
	case CSV:
		return StatisticsToCSV(stats)
	case JSON:
		return shared.MarshalJSON(stats, true)
	default:
		return StatisticsToText(stats), nil
	}
}

// StatisticsToText renders the date range, decade histogram and top years.
func StatisticsToText(stats *models.Statistics) []byte {
	var buf bytes.Buffer

	if stats.PlaylistName != "" {
		fmt.Fprintf(&buf, "Playlist: %s\n", stats.PlaylistName)
	}
	fmt.Fprintf(&buf, "Tracks: %d (%d with release dates)\n", stats.TotalTracks, stats.TracksWithDates)
	fmt.Fprintf(&buf, "Range: %s to %s (%d years)\n", stats.DateRange.Oldest, stats.DateRange.Newest, stats.DateRange.SpanYears)

	buf.WriteString("\nDecades:\n")
	for _, d := range stats.DecadeDistribution {
		fmt.Fprintf(&buf, "  %-6s %4d  %s\n", d.Decade, d.Count, strings.Repeat("#", barWidth(d.Count, stats.TracksWithDates)))
	}

	buf.WriteString("\nTop years:\n")
	for _, y := range stats.TopYears {
		fmt.Fprintf(&buf, "  %d  %d\n", y.Year, y.Count)
	}

	return buf.Bytes()
}

// barWidth scales count against total to at most 40 columns, keeping non-zero counts visible.
func barWidth(count, total int) int {
	if total <= 0 || count <= 0 {
		return 0
	}
	return max(1, count*40/total)
}

// StatisticsToMarkdown renders statistics as Markdown tables.
func StatisticsToMarkdown(stats *models.Statistics) []byte {
	var buf bytes.Buffer

	title := stats.PlaylistName
	if title == "" {
		title = "Release statistics"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d (%d with release dates)\n", stats.TotalTracks, stats.TracksWithDates)
	fmt.Fprintf(&buf, "**Range**: %s to %s (%d years)\n\n", stats.DateRange.Oldest, stats.DateRange.Newest, stats.DateRange.SpanYears)

	buf.WriteString("## Decades\n\n| Decade | Tracks |\n|--------|--------|\n")
	for _, d := range stats.DecadeDistribution {
		fmt.Fprintf(&buf, "| %s | %d |\n", d.Decade, d.Count)
	}

	buf.WriteString("\n## Top Years\n\n| Year | Tracks |\n|------|--------|\n")
	for _, y := range stats.TopYears {
		fmt.Fprintf(&buf, "| %d | %d |\n", y.Year, y.Count)
	}

	return buf.Bytes()
}

// StatisticsToCSV renders the histograms as rows with columns: Kind, Bucket, Count
func StatisticsToCSV(stats *models.Statistics) ([]byte, error) {
	rows := make([][]string, 0, len(stats.DecadeDistribution)+len(stats.TopYears))
	for _, d := range stats.DecadeDistribution {
		rows = append(rows, []string{"decade", d.Decade, strconv.Itoa(d.Count)})
	}
	for _, y := range stats.TopYears {
		rows = append(rows, []string{"year", strconv.Itoa(y.Year), strconv.Itoa(y.Count)})
	}
	return writeCSV([]string{"Kind", "Bucket", "Count"}, rows)
}

// RunRecord is the exported form of a [models.SortRun].
type RunRecord struct {
	ID              string    `json:"id"`
	Sequence        int       `json:"sequence"`
	PlaylistID      string    `json:"playlistId"`
	PlaylistName    string    `json:"playlistName"`
	Direction       string    `json:"direction"`
	Status          string    `json:"status"`
	TracksProcessed int       `json:"tracksProcessed"`
	BatchesApplied  int       `json:"batchesApplied"`
	BatchesTotal    int       `json:"batchesTotal"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	DurationMillis  int64     `json:"durationMs"`
}

func toRecord(run *models.SortRun) RunRecord {
	return RunRecord{
		ID:              run.ID(),
		Sequence:        run.Sequence(),
		PlaylistID:      run.PlaylistID(),
		PlaylistName:    run.PlaylistName(),
		Direction:       string(run.Direction()),
		Status:          string(run.Status()),
		TracksProcessed: run.TracksProcessed(),
		BatchesApplied:  run.BatchesApplied(),
		BatchesTotal:    run.BatchesTotal(),
		Error:           run.Error(),
		StartedAt:       run.StartedAt(),
		DurationMillis:  run.Duration().Milliseconds(),
	}
}

// History renders sort runs in format. Markdown falls back to text.
func History(runs []*models.SortRun, format Format) ([]byte, error) {
	switch format {
	case JSON:
		records := make([]RunRecord, len(runs))
		for i, run := range runs {
			records[i] = toRecord(run)
		}
		return shared.MarshalJSON(records, true)
	case CSV:
		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			r := toRecord(run)
			rows = append(rows, []string{
				strconv.Itoa(r.Sequence), r.StartedAt.Format(time.RFC3339), r.PlaylistID, r.PlaylistName, r.Direction,
				r.Status, strconv.Itoa(r.TracksProcessed), fmt.Sprintf("%d/%d", r.BatchesApplied, r.BatchesTotal), r.Error,
			})
		}
		return writeCSV([]string{"Run", "Started", "Playlist ID", "Playlist", "Direction", "Status", "Tracks", "Batches", "Error"}, rows)
	default:
		return HistoryToText(runs), nil
	}
}

// HistoryToText renders one line per run, newest first as given.
func HistoryToText(runs []*models.SortRun) []byte {
	var buf bytes.Buffer
	if len(runs) == 0 {
		buf.WriteString("No sort runs recorded.\n")
		return buf.Bytes()
	}

	for _, run := range runs {
		name := run.PlaylistName()
		if name == "" {
			name = run.PlaylistID()
		}
		fmt.Fprintf(&buf, "#%d  %s  %-7s  %-4s  %s (%d tracks, %d/%d batches)",
			run.Sequence(), run.StartedAt().Local().Format("2006-01-02 15:04"), run.Status(), run.Direction(),
			name, run.TracksProcessed(), run.BatchesApplied(), run.BatchesTotal())
		if run.Error() != "" {
			fmt.Fprintf(&buf, "\n      %s", run.Error())
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range rows {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// Write sends data to the file at path, or to w when path is empty.
func Write(w io.Writer, path string, data []byte) error {
	if path == "" {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
