package journal

import (
	"os"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "journal-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func rec(id, checksum string, diaryDate, createdAt time.Time) models.Recording {
	return models.Recording{
		ID:         id,
		Source:     models.SourceAPI,
		Transcript: "昨日は仕事で大変だった",
		Checksum:   checksum,
		PageID:     "page-1",
		PageURL:    "https://www.notion.so/page1",
		DiaryDate:  diaryDate,
		CreatedAt:  createdAt,
	}
}

func TestRecordAndFind(t *testing.T) {
	db := testDB(t)
	d := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	if err := db.Record(rec("r1", "abc123", d, time.Now())); err != nil {
		t.Fatal(err)
	}

	got, err := db.Find("abc123", d)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("Find returned nil for recorded checksum")
	}
	if got.ID != "r1" || got.PageID != "page-1" {
		t.Errorf("got = %+v", got)
	}
	if !got.DiaryDate.Equal(d) {
		t.Errorf("diary date = %v, want %v", got.DiaryDate, d)
	}
}

func TestFindMissesOtherDate(t *testing.T) {
	// The same transcript on a different diary date is a fresh entry,
	// not a duplicate.
	db := testDB(t)
	d := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	if err := db.Record(rec("r1", "abc123", d, time.Now())); err != nil {
		t.Fatal(err)
	}

	got, err := db.Find("abc123", d.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Find = %+v, want nil", got)
	}
}

func TestFindUnknownChecksum(t *testing.T) {
	db := testDB(t)
	got, err := db.Find("nope", time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Find = %+v, want nil", got)
	}
}

func TestListNewestFirst(t *testing.T) {
	db := testDB(t)
	d := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	base := time.Date(2026, 1, 22, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		if err := db.Record(rec(id, "cs-"+id, d, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	out, total, err := db.List(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(out) != 3 || out[0].ID != "r3" || out[2].ID != "r1" {
		t.Errorf("order = %v", ids(out))
	}
}

func TestListPagination(t *testing.T) {
	db := testDB(t)
	d := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	base := time.Date(2026, 1, 22, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		if err := db.Record(rec(id, "cs-"+id, d, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	out, total, err := db.List(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(out) != 1 || out[0].ID != "r1" {
		t.Errorf("page = %v, want [r1]", ids(out))
	}
}

func ids(rs []models.Recording) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
