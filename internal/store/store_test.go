package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"shiftcal/internal/ics"
	"shiftcal/internal/model"
)

// Store must satisfy the importer's collaborator contract.
var _ ics.ShiftStore = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "shifts.db"), time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(id, date, start, end string) model.ShiftRecord {
	return model.ShiftRecord{
		ID:        id,
		Date:      model.MustParseDate(date),
		StartTime: model.MustParseClock(start),
		EndTime:   model.MustParseClock(end),
		Team:      "A",
		Code:      "N",
		Notes:     "note, with comma",
	}
}

func TestStoreInsertAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertShift(ctx, rec("r2", "2024-01-03", "22:00", "06:00")); err != nil {
		t.Fatalf("InsertShift: %v", err)
	}
	if err := s.InsertShift(ctx, rec("r1", "2024-01-01", "06:00", "14:00")); err != nil {
		t.Fatalf("InsertShift: %v", err)
	}

	ok, err := s.HasShift(ctx, "A", model.MustParseDate("2024-01-03"), model.MustParseClock("22:00"), model.MustParseClock("06:00"))
	if err != nil || !ok {
		t.Errorf("HasShift existing = %v, %v", ok, err)
	}
	ok, err = s.HasShift(ctx, "B", model.MustParseDate("2024-01-03"), model.MustParseClock("22:00"), model.MustParseClock("06:00"))
	if err != nil || ok {
		t.Errorf("HasShift other team = %v, %v", ok, err)
	}

	got, err := s.ListShifts(ctx, "A", model.MustParseDate("2024-01-01"), model.MustParseDate("2024-01-31"))
	if err != nil {
		t.Fatalf("ListShifts: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r2" {
		t.Fatalf("ListShifts = %+v", got)
	}
	if got[1].StartTime.String() != "22:00" || got[1].Notes != "note, with comma" {
		t.Errorf("round-tripped record = %+v", got[1])
	}

	n, err := s.DeleteShifts(ctx, "A", model.MustParseDate("2024-01-02"), model.MustParseDate("2024-01-31"))
	if err != nil || n != 1 {
		t.Errorf("DeleteShifts = %d, %v", n, err)
	}
}

func TestStoreWithImporterIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	im := ics.NewImporter(s, nil, ics.ImporterOptions{})
	doc := ics.ExportShiftsToICS([]model.ShiftRecord{
		rec("r1", "2024-01-01", "06:00", "14:00"),
		rec("r2", "2024-01-03", "22:00", "06:00"),
	}, ics.ExportOptions{})

	for i, wantImported := range []int{2, 0} {
		res, err := im.Import(context.Background(), []byte(doc), "A")
		if err != nil {
			t.Fatalf("Import #%d: %v", i, err)
		}
		if res.Imported != wantImported {
			t.Errorf("Import #%d imported = %d, want %d", i, res.Imported, wantImported)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := New(nil, DriverPostgres, 0)
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind = %q", got)
	}
	lite := New(nil, DriverSQLite, 0)
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "", time.Second); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
