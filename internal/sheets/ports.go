package sheets

import (
	"context"

	"finanzas/internal/core"
)

// Ports for outbound adapters.
type (
	// MovementMirror keeps an append-only audit trail of ledger changes
	// outside the database.
	MovementMirror interface {
		AppendEvent(ctx context.Context, ev core.LedgerEvent) (rowRef string, err error)
	}

	// HeaderWriter is implemented by mirrors whose target needs a header row.
	HeaderWriter interface {
		EnsureHeader(ctx context.Context) error
	}
)

// Header is the first row of the mirror sheet.
var Header = []string{"Timestamp", "Acción", "ID", "Usuario", "Fecha", "Tipo", "Categoría", "Monto"}
