package state

import (
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() []MessageRecord {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return []MessageRecord{
		{Index: 0, Time: base, Delta: 0, Raw: "0e0100"},
		{Index: 1, Time: base.Add(2 * time.Second), Delta: 2 * time.Second, Raw: "1d180032000000000000"},
		{Index: 2, Time: base.Add(3500 * time.Millisecond), Delta: 1500 * time.Millisecond, Raw: ""},
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	s := tempDB(t)
	in := sampleRecords()

	id, err := s.SaveSession("loop-report-1.md", in)
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty session ID")
	}

	out, err := s.LoadSession(id)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d records, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Index != in[i].Index || out[i].Raw != in[i].Raw {
			t.Errorf("record %d: expected %+v, got %+v", i, in[i], out[i])
		}
		if !out[i].Time.Equal(in[i].Time) {
			t.Errorf("record %d: expected time %v, got %v", i, in[i].Time, out[i].Time)
		}
		if out[i].Delta != in[i].Delta {
			t.Errorf("record %d: expected delta %v, got %v", i, in[i].Delta, out[i].Delta)
		}
	}
}

func TestLoadSession_NotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.LoadSession("missing"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestListSessions_NewestFirst(t *testing.T) {
	s := tempDB(t)
	first, err := s.SaveSession("a", sampleRecords())
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	second, err := s.SaveSession("b", sampleRecords()[:1])
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	list, err := s.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].SessionID != second || list[1].SessionID != first {
		t.Errorf("expected newest first, got %s then %s", list[0].SessionID, list[1].SessionID)
	}
	if list[0].RecordCount != 1 || list[0].Source != "b" {
		t.Errorf("unexpected session info %+v", list[0])
	}
}

func TestSaveAndLoadSnapshots(t *testing.T) {
	s := tempDB(t)
	_, err := s.DB().Exec(
		`INSERT INTO analysis_log (run_id, source, completed, incomplete, skipped, failures, created_at)
		 VALUES ('run-1', 'test', 0, 0, 0, 0, '2026-03-01T08:00:00Z')`,
	)
	if err != nil {
		t.Fatalf("insert run: %v", err)
	}

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	in := []Snapshot{
		{Index: 4, Time: base, Tag: "1a16", Stage: 8, LastTempBasal: 0.6, ScheduledBasal: true, Raw: "1a"},
		{Index: 5, Time: base.Add(time.Second), Delta: time.Second, Tag: "1d", Stage: 8,
			TotalInsulin: 5.0, LastTempBasal: 0.6, TempBasalActive: true, Raw: "1d"},
	}
	if err := s.SaveSnapshots("run-1", in); err != nil {
		t.Fatalf("SaveSnapshots: %v", err)
	}

	out, err := s.LoadSnapshots("run-1")
	if err != nil {
		t.Fatalf("LoadSnapshots: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(out))
	}
	for i := range in {
		want, got := in[i], out[i]
		if !got.Time.Equal(want.Time) {
			t.Errorf("snapshot %d: time %v, want %v", i, got.Time, want.Time)
		}
		got.Time = want.Time
		if got != want {
			t.Errorf("snapshot %d: expected %+v, got %+v", i, want, got)
		}
	}
}

func TestSaveSnapshots_UnknownRun(t *testing.T) {
	s := tempDB(t)
	err := s.SaveSnapshots("nope", []Snapshot{{Index: 1, Tag: "1d"}})
	if err == nil {
		t.Fatal("expected foreign key error for unknown run")
	}
}
