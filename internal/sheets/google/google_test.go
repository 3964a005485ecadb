package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"finanzas/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func sampleEvent() core.LedgerEvent {
	return core.LedgerEvent{
		Action: core.ActionRecorded,
		Movement: core.Movement{
			ID:       12,
			UserID:   7,
			Kind:     core.Expense,
			Category: "comida",
			Amount:   core.Money{Cents: 5000050},
			Date:     core.NewDate(2025, 3, 15),
		},
		At: time.Date(2025, 3, 15, 13, 4, 5, 0, time.FixedZone("COT", -5*3600)),
	}
}

func TestAuditRow(t *testing.T) {
	got := AuditRow(sampleEvent())
	want := []any{"2025-03-15T18:04:05Z", "recorded", int64(12), int64(7), "2025-03-15", "gasto", "comida", "50000.50"}
	if len(got) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %d: expected %v (%T), got %v (%T)", i, want[i], want[i], got[i], got[i])
		}
	}
}

func TestNewWithService_Defaults(t *testing.T) {
	if _, err := NewWithService(nil, " ", ""); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	c, err := NewWithService(nil, "sheet-id", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.sheetName != DefaultSheetName || c.columns() != "Movimientos!A:H" {
		t.Fatalf("unexpected client %+v (%s)", c, c.columns())
	}
}

func TestAppendEvent_Validation(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Movimientos"}

	ev := sampleEvent()
	ev.Action = "archived"
	if _, err := c.AppendEvent(context.Background(), ev); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := c.AppendEvent(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected error with nil service")
	}
}

type fakeSheetsAPI struct {
	mu      sync.Mutex
	rows    [][]any
	header  []any
	appends int
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.rows = append(f.rows, vr.Values...)
		f.appends++
		json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Movimientos!A2:H2"},
		})
	case r.Method == http.MethodGet:
		values := [][]any{}
		if f.header != nil {
			values = append(values, f.header)
		}
		json.NewEncoder(w).Encode(map[string]any{"values": values})
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.header = vr.Values[0]
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": "Movimientos!A1:H1"})
	default:
		http.NotFound(w, r)
	}
}

func newFakeClient(t *testing.T, api *fakeSheetsAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	c, err := NewWithService(svc, "sheet-id", "Movimientos")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAppendEvent_AgainstAPI(t *testing.T) {
	api := &fakeSheetsAPI{}
	c := newFakeClient(t, api)

	ref, err := c.AppendEvent(context.Background(), sampleEvent())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Movimientos!A2:H2" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if api.appends != 1 || len(api.rows) != 1 || api.rows[0][6] != "comida" {
		t.Fatalf("unexpected rows %v", api.rows)
	}
}

func TestEnsureHeader(t *testing.T) {
	api := &fakeSheetsAPI{}
	c := newFakeClient(t, api)

	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if len(api.header) != 8 || api.header[0] != "Timestamp" {
		t.Fatalf("unexpected header %v", api.header)
	}

	api.header = []any{"custom"}
	if err := c.EnsureHeader(context.Background()); err != nil {
		t.Fatal(err)
	}
	if api.header[0] != "custom" {
		t.Fatal("an existing header must not be overwritten")
	}
}
