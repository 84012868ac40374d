package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalSink writes report artefacts under a base directory, using the
// temp-file-then-rename pattern so readers never observe a partial write.
type LocalSink struct {
	basePath string
}

func NewLocalSink(basePath string) *LocalSink {
	return &LocalSink{basePath: basePath}
}

func (s *LocalSink) WriteReport(ctx context.Context, markdown string, meta Metadata) error {
	dir := filepath.Join(s.basePath, meta.Owner, meta.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	latestPath := filepath.Join(dir, "latest.md")
	datedPath := filepath.Join(dir, fmt.Sprintf("%s-%s.md", meta.Date, meta.ReportID))

	if err := atomicWrite(latestPath, markdown); err != nil {
		return fmt.Errorf("write latest report: %w", err)
	}
	if err := atomicWrite(datedPath, markdown); err != nil {
		return fmt.Errorf("write dated report: %w", err)
	}
	return nil
}

func atomicWrite(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
