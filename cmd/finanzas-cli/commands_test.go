package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finanzas/internal/amqp"
	"finanzas/internal/storage"
)

func TestRunShell(t *testing.T) {
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	var out bytes.Buffer
	g := &Globals{UserID: 7, OutDir: t.TempDir()}
	svc, err := g.localService(store, &out, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	in := strings.NewReader("/gasto comida 100\n\nhola\n/ingreso sueldo 500\n")
	if err := runShell(context.Background(), svc, in, &out, g.UserID, g.chat()); err != nil {
		t.Fatal(err)
	}

	movements, err := store.ListAll(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(movements) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(movements))
	}
	if !strings.HasPrefix(out.String(), "finanzas shell.") {
		t.Fatalf("missing banner: %q", out.String())
	}
}

func TestGlobalsChat(t *testing.T) {
	tests := []struct {
		name string
		g    Globals
		want int64
	}{
		{"defaults to user", Globals{UserID: 3}, 3},
		{"explicit chat", Globals{UserID: 3, ChatID: -100}, -100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.chat(); got != tt.want {
				t.Errorf("chat() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintReply(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		if err := printReply(&out, t.TempDir(), &amqp.ReplyMessage{ChatID: 5, Text: "hola"}); err != nil {
			t.Fatal(err)
		}
		if out.String() != "[5] hola\n" {
			t.Fatalf("unexpected output %q", out.String())
		}
	})

	t.Run("document", func(t *testing.T) {
		var out bytes.Buffer
		dir := t.TempDir()
		reply := &amqp.ReplyMessage{
			ChatID: 5,
			Document: &amqp.Document{
				FileName: "../movimientos_5.csv",
				Caption:  "export",
				Content:  []byte("Fecha,Tipo,Categoría,Monto\n"),
			},
		}
		if err := printReply(&out, dir, reply); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "movimientos_5.csv"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), "Fecha") {
			t.Fatalf("unexpected content %q", data)
		}
		if !strings.Contains(out.String(), "export") {
			t.Fatalf("unexpected output %q", out.String())
		}
	})
}
