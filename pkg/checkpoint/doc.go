// Package checkpoint saves and resumes in-progress collections.
//
// A long followers list can take an hour of scrolling. The collector reports
// every page, and the scraper writes the records gathered so far to a
// checkpoint file. An interrupted run started again with --resume seeds the
// collector with those records instead of starting from an empty list. The
// checkpoint also remembers which media files were already downloaded.
//
// Checkpoints live under the data directory:
//   - Linux: ~/.local/share/xscraper/checkpoints/
//   - macOS: ~/Library/Application Support/xscraper/checkpoints/
//   - Windows: %APPDATA%/xscraper/checkpoints/
//
// Files are written atomically and carry a format version; a checkpoint with
// an unknown version is rejected rather than misread.
package checkpoint
