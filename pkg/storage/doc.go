// Package storage holds the media files downloaded for a subject, one
// directory per subject under <output>/media. Files are written through a
// temp file and rename; the downloader asks IsDownloaded before fetching.
package storage
