package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"finanzas/internal/core"
)

type fakeLister struct {
	movements []core.Movement
	err       error
}

func (f *fakeLister) ListAll(ctx context.Context, userID int64) ([]core.Movement, error) {
	return f.movements, f.err
}

func sample() []core.Movement {
	return []core.Movement{
		{ID: 1, UserID: 7, Kind: core.Expense, Category: "comida", Amount: core.FromUnits(50000), Date: core.NewDate(2025, 1, 10)},
		{ID: 2, UserID: 7, Kind: core.Income, Category: "salario, enero", Amount: core.FromUnits(2000000), Date: core.NewDate(2025, 1, 15)},
		{ID: 3, UserID: 7, Kind: core.Expense, Category: `dijo "hola"`, Amount: core.Money{Cents: 1250}, Date: core.NewDate(2025, 2, 1)},
	}
}

func TestExportFormat(t *testing.T) {
	svc := NewService(&fakeLister{movements: sample()[:1]}, "")
	name, content, err := svc.Export(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if name != "movimientos_7.csv" {
		t.Fatalf("unexpected name %q", name)
	}
	want := "Fecha,Tipo,Categoría,Monto\n2025-01-10,gasto,comida,50000\n"
	if string(content) != want {
		t.Fatalf("expected %q, got %q", want, content)
	}
}

func TestExportQuotingRoundTrips(t *testing.T) {
	svc := NewService(&fakeLister{movements: sample()}, "")
	_, content, err := svc.Export(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[2][2] != "salario, enero" || records[2][1] != "ingreso" {
		t.Fatalf("unexpected record %v", records[2])
	}
	if records[3][2] != `dijo "hola"` || records[3][3] != "12.5" {
		t.Fatalf("unexpected record %v", records[3])
	}
}

func TestExportIsIdempotent(t *testing.T) {
	svc := NewService(&fakeLister{movements: sample()}, "")
	_, a, err := svc.Export(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	_, b, err := svc.Export(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("exports differ")
	}
}

func TestExportEmpty(t *testing.T) {
	svc := NewService(&fakeLister{}, "")
	if _, _, err := svc.Export(context.Background(), 7); !errors.Is(err, core.ErrEmptyExport) {
		t.Fatalf("expected ErrEmptyExport, got %v", err)
	}
	called := false
	err := svc.Deliver(context.Background(), 7, func(ctx context.Context, path string) error {
		called = true
		return nil
	})
	if !errors.Is(err, core.ErrEmptyExport) || called {
		t.Fatalf("expected ErrEmptyExport without send, got %v (called=%v)", err, called)
	}
}

func TestExportStoreFailure(t *testing.T) {
	boom := core.Persistence("list movements", errors.New("disk"))
	svc := NewService(&fakeLister{err: boom}, "")
	if _, _, err := svc.Export(context.Background(), 7); !core.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestDeliverRemovesFile(t *testing.T) {
	tmp := t.TempDir()
	svc := NewService(&fakeLister{movements: sample()}, tmp)

	var seen string
	err := svc.Deliver(context.Background(), 7, func(ctx context.Context, path string) error {
		seen = path
		if filepath.Base(path) != "movimientos_7.csv" {
			t.Fatalf("unexpected file name %q", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("file should exist during send: %v", err)
		}
		if !bytes.HasPrefix(data, []byte("Fecha,Tipo,Categoría,Monto\n")) {
			t.Fatalf("unexpected content %q", data)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Fatalf("file not removed after success: %v", err)
	}
	assertEmptyDir(t, tmp)
}

func TestDeliverRemovesFileOnFailure(t *testing.T) {
	tmp := t.TempDir()
	svc := NewService(&fakeLister{movements: sample()}, tmp)

	var seen string
	err := svc.Deliver(context.Background(), 7, func(ctx context.Context, path string) error {
		seen = path
		return errors.New("transport down")
	})
	var de *core.DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Fatalf("file not removed after failure: %v", err)
	}
	assertEmptyDir(t, tmp)
}

func TestDeliverRemovesFileOnPanic(t *testing.T) {
	tmp := t.TempDir()
	svc := NewService(&fakeLister{movements: sample()}, tmp)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		_ = svc.Deliver(context.Background(), 7, func(ctx context.Context, path string) error {
			panic("boom")
		})
	}()
	assertEmptyDir(t, tmp)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}
