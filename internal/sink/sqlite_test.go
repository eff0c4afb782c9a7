package sink

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jpalmerr/winevent/internal/linebuffer"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestSQLite_Write(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	s := NewSQLite(db)
	s.now = func() time.Time { return time.UnixMilli(5000) }

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertLine)).
		WithArgs(sqlmock.AnyArg(), "log", int64(1), "first", "DNS", int64(5000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertLine)).
		WithArgs(sqlmock.AnyArg(), "log", int64(2), "second", "DNS", int64(5000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = s.Write(testCtx(t), []linebuffer.Line{
		{Kind: "log", Timestamp: 1, Text: "first", Source: "DNS"},
		{Kind: "log", Timestamp: 2, Text: "second", Source: "DNS"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestSQLite_WriteRollsBackOnError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	s := NewSQLite(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO lines").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = s.Write(testCtx(t), []linebuffer.Line{{Kind: "log", Text: "x", Source: "s"}})
	if err == nil || !strings.Contains(err.Error(), "disk I/O error") {
		t.Fatalf("expected insert error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestSQLite_WriteEmptyBatch(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	if err := NewSQLite(db).Write(testCtx(t), nil); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("empty batch should not touch the database: %v", err)
	}
}

func TestSQLite_Recent(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"kind", "ts", "text", "source"}).
		AddRow("log", int64(2), "second", "DNS").
		AddRow("log", int64(1), "first", "DNS")
	mock.ExpectQuery(regexp.QuoteMeta(selectRecent)).
		WithArgs(10).
		WillReturnRows(rows)

	got, err := NewSQLite(db).Recent(testCtx(t), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Text != "second" || got[1].Timestamp != 1 {
		t.Errorf("Recent() = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestSQLite_RecentQueryError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT kind").WillReturnError(errors.New("locked"))

	if _, err := NewSQLite(db).Recent(testCtx(t), 5); err == nil || !strings.Contains(err.Error(), "locked") {
		t.Fatalf("expected query error, got %v", err)
	}
}

// TestOpenSQLite_RoundTrip exercises the real driver against a temp file.
func TestOpenSQLite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	ctx := testCtx(t)
	if err := s.Write(ctx, []linebuffer.Line{
		{Kind: "log", Timestamp: 1, Text: "first", Source: "A"},
		{Kind: "log", Timestamp: 2, Text: "second", Source: "B"},
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(ctx, []linebuffer.Line{{Kind: "log", Timestamp: 3, Text: "third", Source: "A"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d lines", len(got))
	}
	if got[0].Text != "third" || got[1].Text != "second" {
		t.Errorf("Recent(2) = %+v, want third then second", got)
	}
}

func TestOpenSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Write(testCtx(t), []linebuffer.Line{{Kind: "log", Timestamp: 1, Text: "kept", Source: "A"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_ = s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("second OpenSQLite: %v", err)
	}
	defer s.Close()

	got, err := s.Recent(testCtx(t), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Text != "kept" {
		t.Errorf("Recent() after reopen = %+v", got)
	}
}
