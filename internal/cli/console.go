package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"finanzas/internal/format"
)

// ConsoleSender prints replies to a writer and copies exported documents
// into a directory, for running the bot locally without a chat gateway.
type ConsoleSender struct {
	mu     sync.Mutex
	out    io.Writer
	outDir string
}

// NewConsoleSender writes to out and saves documents under outDir
// (the working directory when empty).
func NewConsoleSender(out io.Writer, outDir string) *ConsoleSender {
	if outDir == "" {
		outDir = "."
	}
	return &ConsoleSender{out: out, outDir: outDir}
}

func (s *ConsoleSender) SendText(_ context.Context, _ int64, reply format.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, reply.Text)
	return err
}

// SendDocument copies path into the output directory under its own name.
func (s *ConsoleSender) SendDocument(_ context.Context, _ int64, path, caption string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if err := os.MkdirAll(s.outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	dest := filepath.Join(s.outDir, filepath.Base(path))
	if err := os.WriteFile(dest, content, 0600); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = fmt.Fprintf(s.out, "%s\n📎 %s\n", caption, dest)
	return err
}
