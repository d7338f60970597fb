// Package tasks orchestrates playlist sorts with real-time progress reporting.
//
// # Core Operations
//
// The [Sorter] interface defines two operations:
//
//  1. [Sorter.Sort] : Reorder a playlist by album release date
//     - Fetches playlist metadata and every track, page by page
//     - Orders tracks oldest or newest first (undated tracks last when ascending)
//     - Rewrites the playlist with one replace followed by appends
//     - Returns a summary with formatted oldest and newest tracks
//
//  2. [Sorter.Statistics] : Summarize release dates without writing
//     - Date range and span in years
//     - Decade histogram and the five most frequent years
//
// [SortEngine.BulkSort] runs Sort over several distinct playlists with a worker pool and a rate limiter.
//
// # States
//
// A sort moves through [Fetching], [Ordering], [Reconciling], [Summarizing] and [Done]. [Failed] may follow
// any of them. No phase is entered twice and nothing is written once a sort has failed.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [RunRecorder] receives a models.SortRun for every attempt, including failed and partial ones.
// Recording errors are logged and never change the result of a sort.
package tasks
