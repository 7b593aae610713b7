package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/listafacil/apiserver/types"
)

func registrantRow(id, eventID int, name, email string) types.Registrant {
	return types.Registrant{
		ID:            id,
		EventID:       eventID,
		Name:          name,
		Email:         email,
		CheckinStatus: types.CheckinPending,
	}
}

type captureStore struct {
	bucket      string
	key         string
	contentType string
	data        []byte
	ensured     bool
}

func (s *captureStore) EnsureBucket(ctx context.Context) error {
	s.ensured = true
	return nil
}

func (s *captureStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.key = key
	s.contentType = contentType
	s.data = data
	return nil
}

func (s *captureStore) Bucket() string {
	return s.bucket
}

func TestBuildCSVRendersNameList(t *testing.T) {
	events := newMemEventRepo(activeEvent(1, 0))
	rows := newMemRegistrantRepo()
	svc := NewReportService(events, rows, nil)

	checkinAt := time.Date(2026, 8, 30, 19, 15, 0, 0, time.UTC)
	staffID := 7
	rows.nextID = 2
	rows.rows[1] = registrantRow(1, 1, "Alice Souza", "alice@example.com")
	present := rows.rows[1]
	present.CheckinStatus = "present"
	present.CheckinTime = &checkinAt
	present.CheckedBy = &staffID
	present.CheckedByName = "Front Desk"
	present.Notes = "vip"
	rows.rows[1] = present
	rows.rows[2] = registrantRow(2, 1, "Bruno Lima", "")

	data, event, err := svc.BuildCSV(context.Background(), 1)
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}
	if event.ID != 1 {
		t.Fatalf("unexpected event: %d", event.ID)
	}

	want := "name,email,phone,checkin_status,checkin_time,checked_by,notes\n" +
		"Alice Souza,alice@example.com,,present,2026-08-30T19:15:00Z,Front Desk,vip\n" +
		"Bruno Lima,,,pending,,,\n"
	if string(data) != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", data, want)
	}
}

func TestArchiveUploadsReport(t *testing.T) {
	events := newMemEventRepo(activeEvent(1, 0))
	rows := newMemRegistrantRepo()
	obj := &captureStore{bucket: "attendance-reports"}
	svc := NewReportService(events, rows, obj)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	}

	rows.nextID = 1
	rows.rows[1] = registrantRow(1, 1, "Alice Souza", "")

	location, err := svc.Archive(context.Background(), 1)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !obj.ensured {
		t.Fatalf("expected bucket to be ensured before upload")
	}
	if location.Bucket != "attendance-reports" {
		t.Fatalf("unexpected bucket: %q", location.Bucket)
	}
	if location.Key != "reports/event-1-20260831-120000.csv" {
		t.Fatalf("unexpected key: %q", location.Key)
	}
	if obj.contentType != "text/csv" {
		t.Fatalf("unexpected content type: %q", obj.contentType)
	}
	if !bytes.Contains(obj.data, []byte("Alice Souza")) {
		t.Fatalf("uploaded csv missing registrant row")
	}
}

func TestArchiveWithoutStorage(t *testing.T) {
	svc := NewReportService(newMemEventRepo(activeEvent(1, 0)), newMemRegistrantRepo(), nil)

	if _, err := svc.Archive(context.Background(), 1); !errors.Is(err, ErrStorageDisabled) {
		t.Fatalf("expected ErrStorageDisabled, got %v", err)
	}
}
