package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const timestampLayout = "2006-01-02 15:04:05"

// FileSink appends one human-readable line per record to a text file
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates the file's directory if needed
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	return &FileSink{path: path}, nil
}

// Append writes rec as a single line
func (s *FileSink) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger file: %w", err)
	}

	if _, err := f.WriteString(FormatLine(rec) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return f.Close()
}

// FormatLine renders rec the way FileSink stores it
func FormatLine(rec Record) string {
	return fmt.Sprintf("[%s] EMBG=%s | Patient=%q | Doctor=%q | Medicine=%q | Qty=%d",
		rec.RecordedAt.UTC().Format(timestampLayout),
		rec.PatientID, rec.PatientName, rec.DoctorName, rec.MedicineName, rec.Quantity,
	)
}
