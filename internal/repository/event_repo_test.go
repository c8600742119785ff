package repository_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	bridge "tovala_bridge"
	"tovala_bridge/internal/repository"
)

// sqlmockArgumentFunc adapts a predicate into a sqlmock argument matcher.
type sqlmockArgumentFunc func(driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool { return f(v) }

func TestEventSQLite_Append_SetsDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewEventSQLite(db)

	isUUID := sqlmockArgumentFunc(func(v driver.Value) bool {
		s, ok := v.(string)
		return ok && len(s) == 36
	})
	isTimestamp := sqlmockArgumentFunc(func(v driver.Value) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		_, perr := time.Parse("2006-01-02 15:04:05", s)
		return perr == nil
	})
	isJSONMeta := sqlmockArgumentFunc(func(v driver.Value) bool {
		s, ok := v.(string)
		return ok && s == `{"oven_id":"oven-1"}`
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO oven_events")).
		WithArgs(isUUID, isTimestamp, "TIMER_FINISHED", "Cooking timer finished", isJSONMeta).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Append(context.Background(), bridge.OvenEvent{
		Type:        "timer_finished", // normalized to upper case
		Description: "Cooking timer finished",
		Metadata:    map[string]any{"oven_id": "oven-1"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEventSQLite_List_FiltersAndDecodesMeta(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewEventSQLite(db)

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	occurred := from.Add(3 * time.Hour)

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "message", "meta"}).
		AddRow("ev-1", occurred, "COOK_START", "Started cook", `{"barcode":"bc-1"}`).
		AddRow("ev-2", occurred.Add(time.Minute), "COOK_START", "Started cook", nil)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, occurred_at, type, message, meta FROM oven_events WHERE occurred_at >= ? AND type = ? ORDER BY occurred_at ASC",
	)).WithArgs(from, "COOK_START").WillReturnRows(rows)

	events, err := repo.List(context.Background(), from, time.Time{}, "cook_start")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	meta, ok := events[0].Metadata.(map[string]any)
	if !ok || meta["barcode"] != "bc-1" {
		t.Errorf("metadata = %+v, want decoded map", events[0].Metadata)
	}
	if events[1].Metadata != nil {
		t.Errorf("nil meta column must stay nil, got %+v", events[1].Metadata)
	}
	if events[0].OccurredAt.Location() != time.UTC {
		t.Errorf("OccurredAt must be UTC")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
