// Package models defines the domain entities of the release-date sorter.
//
// The package contains two categories of types:
//
// 1. Catalog values: immutable records fetched from the music catalog for a single sort
//   - [Track] and [Album] : a playlist entry and the album carrying its release date
//   - [Playlist] : playlist metadata used for listings and summaries
//   - [SortResult], [Statistics] : outcomes reported back to the caller
//
// 2. Persistent entities: database-backed records with lifecycle management
//   - [SortRun] : one recorded sort attempt with its outcome and batch progress
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
