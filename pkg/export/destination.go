package export

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"xscraper/internal/fsutil"
)

// Destination receives one serialised export
type Destination interface {
	// Write stores the output of write under name and returns where it went
	Write(name string, format Format, write func(w io.Writer) error) (string, error)
}

// FileDestination writes files atomically inside a directory
type FileDestination struct {
	Dir string
}

// Write creates <Dir>/<name>.<ext>
func (d FileDestination) Write(name string, format Format, write func(w io.Writer) error) (string, error) {
	path := filepath.Join(d.Dir, name+"."+format.Extension())
	if err := fsutil.WriteFileAtomic(path, 0644, write); err != nil {
		return "", fmt.Errorf("failed to write export %s: %w", path, err)
	}
	return path, nil
}

// WriterDestination streams exports to a writer such as stdout
type WriterDestination struct {
	W     io.Writer
	Label string
}

// Write writes directly to the wrapped writer
func (d WriterDestination) Write(name string, format Format, write func(w io.Writer) error) (string, error) {
	if err := write(d.W); err != nil {
		return "", err
	}
	label := d.Label
	if label == "" {
		label = "stdout"
	}
	return label, nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// FileName builds <handle>_<surface>_<timestamp>, optionally with a suffix such as "delta"
func FileName(handle, surface string, at time.Time, suffix string) string {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	parts := []string{
		unsafeName.ReplaceAllString(handle, "_"),
		unsafeName.ReplaceAllString(surface, "_"),
		at.UTC().Format("20060102_150405"),
	}
	if suffix != "" {
		parts = append(parts, unsafeName.ReplaceAllString(suffix, "_"))
	}
	return strings.Join(parts, "_")
}
