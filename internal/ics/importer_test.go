package ics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shiftcal/internal/model"
)

type slotKey struct {
	team       string
	date       model.Date
	start, end model.Clock
}

type memStore struct {
	mu       sync.Mutex
	records  []model.ShiftRecord
	slots    map[slotKey]bool
	failHas  bool
	onInsert func(n int)
}

func newMemStore() *memStore {
	return &memStore{slots: map[slotKey]bool{}}
}

func (s *memStore) HasShift(_ context.Context, team string, date model.Date, start, end model.Clock) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHas {
		return false, errors.New("store unavailable")
	}
	return s.slots[slotKey{team, date, start, end}], nil
}

func (s *memStore) InsertShift(_ context.Context, rec model.ShiftRecord) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.slots[slotKey{rec.Team, rec.Date, rec.StartTime, rec.EndTime}] = true
	n := len(s.records)
	s.mu.Unlock()
	if s.onInsert != nil {
		s.onInsert(n)
	}
	return nil
}

func newTestImporter(store ShiftStore, fetcher *Fetcher) *Importer {
	return NewImporter(store, fetcher, ImporterOptions{Now: fixedNow})
}

func TestImportDeduplicates(t *testing.T) {
	store := newMemStore()
	im := newTestImporter(store, nil)
	doc := []byte(ExportShiftsToICS(sampleRecords(), ExportOptions{Now: fixedNow}))

	first, err := im.Import(context.Background(), doc, "A")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if first.Imported != 2 || first.Skipped != 0 || first.Errored != 0 {
		t.Errorf("first import = %+v", first)
	}

	second, err := im.Import(context.Background(), doc, "A")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if second.Imported != 0 || second.Skipped != 2 {
		t.Errorf("second import = %+v, want everything skipped", second)
	}
	if len(store.records) != 2 {
		t.Errorf("store has %d records, want 2", len(store.records))
	}

	// Dedup is scoped to the target team.
	other, err := im.Import(context.Background(), doc, "B")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if other.Imported != 2 {
		t.Errorf("import into team B = %+v", other)
	}
}

func TestImportCountsBrokenEvents(t *testing.T) {
	store := newMemStore()
	im := newTestImporter(store, nil)
	body := calendar(
		"BEGIN:VEVENT", "UID:ok", "DTSTART:20240101T060000Z", "DTEND:20240101T140000Z", "END:VEVENT",
		"BEGIN:VEVENT", "UID:broken", "SUMMARY:no start", "END:VEVENT",
		"BEGIN:VEVENT", "UID:dup", "DTSTART:20240101T060000Z", "DTEND:20240101T140000Z", "END:VEVENT",
	)

	res, err := im.Import(context.Background(), body, "A")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 1 || res.Skipped != 1 || res.Errored != 1 || res.Total() != 3 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], ErrMissingDTStart) {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestImportStructuralErrorIsFatal(t *testing.T) {
	im := newTestImporter(newMemStore(), nil)
	_, err := im.Import(context.Background(), []byte("not a calendar"), "A")
	if !errors.Is(err, ErrICSParse) {
		t.Errorf("err = %v, want ErrICSParse", err)
	}
}

func TestImportStoreFailureCountsPerEvent(t *testing.T) {
	store := newMemStore()
	store.failHas = true
	im := newTestImporter(store, nil)
	doc := []byte(ExportShiftsToICS(sampleRecords(), ExportOptions{Now: fixedNow}))

	res, err := im.Import(context.Background(), doc, "A")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Errored != 2 || res.Imported != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestImportCancellationKeepsInsertedRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemStore()
	store.onInsert = func(n int) {
		if n == 1 {
			cancel()
		}
	}
	im := newTestImporter(store, nil)
	doc := []byte(ExportShiftsToICS(sampleRecords(), ExportOptions{Now: fixedNow}))

	res, err := im.Import(ctx, doc, "A")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Imported != 1 || len(store.records) != 1 {
		t.Errorf("result = %+v, store = %d; want the first record kept", res, len(store.records))
	}
}

func TestImportFromURLIdempotent(t *testing.T) {
	doc := ExportShiftsToICS(sampleRecords(), ExportOptions{Now: fixedNow})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	store := newMemStore()
	im := newTestImporter(store, NewFetcher(srv.Client(), ""))

	first, err := im.ImportFromURL(context.Background(), srv.URL+"/team.ics", "A")
	if err != nil {
		t.Fatalf("ImportFromURL: %v", err)
	}
	if first.Imported != 2 {
		t.Errorf("first = %+v", first)
	}

	second, err := im.ImportFromURL(context.Background(), srv.URL+"/team.ics", "A")
	if err != nil {
		t.Fatalf("ImportFromURL: %v", err)
	}
	if second.Imported != 0 || second.Skipped != 2 {
		t.Errorf("second = %+v, want 0 imported", second)
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want one per import", hits.Load())
	}
}

func TestImportFromURLFetchFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	url := srv.URL + "/missing.ics"

	store := newMemStore()
	im := newTestImporter(store, NewFetcher(srv.Client(), ""))

	if _, err := im.ImportFromURL(context.Background(), url, "A"); !errors.Is(err, ErrNetworkFetch) {
		t.Errorf("404 err = %v, want ErrNetworkFetch", err)
	}

	srv.Close()
	if _, err := im.ImportFromURL(context.Background(), url, "A"); !errors.Is(err, ErrNetworkFetch) {
		t.Errorf("closed server err = %v, want ErrNetworkFetch", err)
	}
	if _, err := im.ImportFromURL(context.Background(), "", "A"); !errors.Is(err, ErrNetworkFetch) {
		t.Errorf("empty url err = %v, want ErrNetworkFetch", err)
	}
	if len(store.records) != 0 {
		t.Error("failed fetches must not insert records")
	}
}

func TestFetchRejectsOversizedCalendar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "BEGIN:VCALENDAR\r\n")
		_, _ = io.CopyN(w, spaceReader{}, maxBodyBytes)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.Client(), "").Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrNetworkFetch) || !strings.Contains(err.Error(), "too large") {
		t.Errorf("oversized err = %v, want ErrNetworkFetch too large", err)
	}
}

type spaceReader struct{}

func (spaceReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = ' '
	}
	return len(p), nil
}

func TestFetcherRevalidatesWithETag(t *testing.T) {
	doc := ExportShiftsToICS(sampleRecords(), ExportOptions{Now: fixedNow})
	var conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), t.TempDir())
	first, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	second, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch (revalidate): %v", err)
	}
	if string(first) != doc || string(second) != doc {
		t.Error("cached body differs from original")
	}
	if conditional.Load() != 1 {
		t.Errorf("conditional requests = %d, want 1", conditional.Load())
	}
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shifts.ics")
	doc := ExportShiftsToICS(sampleRecords(), ExportOptions{Now: fixedNow})
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	im := newTestImporter(newMemStore(), nil)
	res, err := im.ImportFile(context.Background(), path, "A")
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Imported != 2 {
		t.Errorf("result = %+v", res)
	}
	if _, err := im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.ics"), "A"); err == nil {
		t.Error("missing file should fail")
	}
}

func TestImportExpandsWithinWindow(t *testing.T) {
	body := calendar(
		"BEGIN:VEVENT", "UID:daily", "DTSTART:20231201T060000Z", "DTEND:20231201T140000Z", "RRULE:FREQ=DAILY", "END:VEVENT",
	)
	im := NewImporter(newMemStore(), nil, ImporterOptions{
		Now:          func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) },
		HorizonDays:  5,
		BackfillDays: 2,
	})
	res, err := im.Import(context.Background(), body, "A")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	// 2024-01-09 06:00 .. 2024-01-15 06:00 fall within [01-08 12:00, 01-15 12:00].
	if res.Imported != 7 {
		t.Errorf("imported = %d, want 7", res.Imported)
	}
}

func TestParseICSAssignsStableIDsWithoutUID(t *testing.T) {
	doc := calendar(
		"BEGIN:VEVENT", "DTSTART:20240101T060000Z", "DTEND:20240101T140000Z", "SUMMARY:Shift M", "END:VEVENT",
	)
	first, err := ParseICS(doc, ParseOptions{Team: "A"})
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	second, err := ParseICS(doc, ParseOptions{Team: "A"})
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(first.Records) != 1 || len(first.Records[0].ID) != 36 {
		t.Fatalf("records = %+v", first.Records)
	}
	if first.Records[0].ID != second.Records[0].ID {
		t.Errorf("ids differ: %s vs %s", first.Records[0].ID, second.Records[0].ID)
	}
}
