package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/listafacil/apiserver/types"
)

// ErrStorageDisabled is returned when report archiving is requested but no
// object storage backend is configured.
var ErrStorageDisabled = errors.New("report storage is not configured")

// ObjectStore uploads report archives. Satisfied by *storage.Storage;
// nil disables archiving.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// ReportService builds attendance CSV reports and archives them to object
// storage.
type ReportService struct {
	events      EventRepository
	registrants RegistrantRepository
	store       ObjectStore
	now         func() time.Time
}

func NewReportService(events EventRepository, registrants RegistrantRepository, store ObjectStore) *ReportService {
	return &ReportService{
		events:      events,
		registrants: registrants,
		store:       store,
		now:         time.Now,
	}
}

// ReportLocation identifies an archived report object.
type ReportLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// BuildCSV renders the event's full name list as CSV, ordered by name.
func (s *ReportService) BuildCSV(ctx context.Context, eventID int) ([]byte, types.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, types.Event{}, err
	}

	registrants, err := s.registrants.ListByEvent(ctx, eventID, "", "")
	if err != nil {
		return nil, types.Event{}, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"name", "email", "phone", "checkin_status", "checkin_time", "checked_by", "notes"})
	for _, reg := range registrants {
		checkinTime := ""
		if reg.CheckinTime != nil {
			checkinTime = reg.CheckinTime.Format(time.RFC3339)
		}
		_ = w.Write([]string{
			reg.Name,
			reg.Email,
			reg.Phone,
			string(reg.CheckinStatus),
			checkinTime,
			reg.CheckedByName,
			reg.Notes,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, types.Event{}, err
	}
	return buf.Bytes(), event, nil
}

// Archive builds the CSV report and uploads it to the configured bucket,
// returning where it was stored.
func (s *ReportService) Archive(ctx context.Context, eventID int) (ReportLocation, error) {
	if s.store == nil {
		return ReportLocation{}, ErrStorageDisabled
	}

	data, event, err := s.BuildCSV(ctx, eventID)
	if err != nil {
		return ReportLocation{}, err
	}

	if err := s.store.EnsureBucket(ctx); err != nil {
		return ReportLocation{}, err
	}

	key := reportKey(event, s.now())
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		return ReportLocation{}, err
	}

	return ReportLocation{Bucket: s.store.Bucket(), Key: key}, nil
}

func reportKey(event types.Event, now time.Time) string {
	return fmt.Sprintf("reports/event-%d-%s.csv", event.ID, now.UTC().Format("20060102-150405"))
}
