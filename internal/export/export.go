// Package export writes a user's full history as CSV and manages the
// temporary file handed to the transport.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

var header = []string{"Fecha", "Tipo", "Categoría", "Monto"}

// Lister is the slice of the ledger store the exporter needs.
type Lister interface {
	ListAll(ctx context.Context, userID int64) ([]core.Movement, error)
}

// SendFunc hands the file at path to the transport.
type SendFunc func(ctx context.Context, path string) error

// Service builds CSV exports.
type Service struct {
	store   Lister
	tempDir string
}

// NewService creates an exporter. tempDir may be empty to use the system default.
func NewService(store Lister, tempDir string) *Service {
	return &Service{store: store, tempDir: tempDir}
}

// FileName is the name the export is delivered under.
func FileName(userID int64) string {
	return fmt.Sprintf("movimientos_%d.csv", userID)
}

// Export returns the CSV bytes for userID, or core.ErrEmptyExport when the
// user has no movements.
func (s *Service) Export(ctx context.Context, userID int64) (string, []byte, error) {
	movements, err := s.store.ListAll(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("list movements: %w", err)
	}
	if len(movements) == 0 {
		return "", nil, core.ErrEmptyExport
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, movements); err != nil {
		return "", nil, err
	}
	return FileName(userID), buf.Bytes(), nil
}

// Deliver writes the export to a fresh temporary directory and calls send
// with its path. The directory is removed however send returns. A send
// failure comes back as *core.DeliveryError.
func (s *Service) Deliver(ctx context.Context, userID int64, send SendFunc) error {
	name, content, err := s.Export(ctx, userID)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp(s.tempDir, "finanzas-export-")
	if err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.WarnContext(ctx, "Failed to remove export file", "dir", dir, "error", err)
		}
	}()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}

	if err := send(ctx, path); err != nil {
		return &core.DeliveryError{Err: err}
	}

	slog.InfoContext(ctx, "Export delivered", "user_id", userID, "bytes", len(content))
	return nil
}

// WriteCSV writes the header and one quoted-as-needed record per movement.
func WriteCSV(w io.Writer, movements []core.Movement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range movements {
		record := []string{
			m.Date.String(),
			storage.KindLabel(m.Kind),
			m.Category,
			m.Amount.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record %d: %w", m.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
