// Package resultfile writes the result set as one address per line.
package resultfile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"balscan/internal/domain"
)

type Sink struct {
	path string
}

func NewSink(path string) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("result file path is required")
	}
	return &Sink{path: path}, nil
}

func (s *Sink) Path() string {
	return s.path
}

// Emit replaces the file with the sorted result set. The content is written to a temp file in
// the same directory and renamed over the target, so readers never observe a partial file.
func (s *Sink) Emit(ctx context.Context, results domain.ResultSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp result file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, addr := range results.Sorted() {
		if _, err := w.WriteString(string(addr) + "\n"); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close results: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod results: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace result file: %w", err)
	}
	committed = true
	return nil
}
