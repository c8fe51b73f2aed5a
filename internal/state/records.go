package state

import (
	"context"
	"slices"
	"time"

	"roast-tracker/internal/model"
)

const (
	opAddRecord    = "add_detection_record"
	opRemoveRecord = "remove_detection_record"
	opClearRecords = "clear_detection_records"
	opLoadRecords  = "load_detection_records"
)

// AddDetectionRecord stores a new record. When syncing, the record is
// inserted only after the gateway returns it; nothing is inserted on failure.
func (s *Store) AddDetectionRecord(ctx context.Context, in model.DetectionInput) Result[model.DetectionRecord] {
	s.emit(opAddRecord, Pending, nil)
	if err := in.Validate(); err != nil {
		return fail[model.DetectionRecord](s, opAddRecord, err)
	}

	var record model.DetectionRecord
	if owner, ok := s.remote(); ok {
		in.OwnerID = owner
		created, err := s.gw.CreateDetectionRecord(ctx, in)
		if err != nil {
			return fail[model.DetectionRecord](s, opAddRecord, err)
		}
		record = created
	} else {
		in.OwnerID = nil
		record = in.Record(s.newID(), s.now())
	}

	s.mu.Lock()
	s.records = slices.Insert(s.records, 0, record)
	s.mu.Unlock()
	return commit(ctx, s, opAddRecord, record)
}

// RemoveDetectionRecord deletes a record. State is unchanged on failure.
func (s *Store) RemoveDetectionRecord(ctx context.Context, id string) Result[string] {
	s.emit(opRemoveRecord, Pending, nil)

	if _, ok := s.remote(); ok {
		if err := s.gw.DeleteDetectionRecord(ctx, id); err != nil {
			return fail[string](s, opRemoveRecord, err)
		}
	}

	s.mu.Lock()
	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r model.DetectionRecord) bool { return r.ID == id })
	removed := len(s.records) != before
	s.mu.Unlock()

	if !removed {
		if _, ok := s.remote(); !ok {
			return fail[string](s, opRemoveRecord, notFound("detection record", id))
		}
	}
	return commit(ctx, s, opRemoveRecord, id)
}

// ClearDetectionRecords empties the local history. Remote rows are kept.
func (s *Store) ClearDetectionRecords() Result[int] {
	s.emit(opClearRecords, Pending, nil)
	s.mu.Lock()
	n := len(s.records)
	s.records = []model.DetectionRecord{}
	s.mu.Unlock()
	return commit(context.Background(), s, opClearRecords, n)
}

// LoadDetectionRecords replaces the local list with the records visible to
// the current identity. Local-only stores return their own list.
func (s *Store) LoadDetectionRecords(ctx context.Context) Result[[]model.DetectionRecord] {
	s.emit(opLoadRecords, Pending, nil)

	owner, ok := s.remote()
	if !ok {
		return commit(ctx, s, opLoadRecords, s.DetectionRecords())
	}
	records, err := s.gw.ListDetectionRecords(ctx, owner)
	if err != nil {
		return fail[[]model.DetectionRecord](s, opLoadRecords, err)
	}
	if records == nil {
		records = []model.DetectionRecord{}
	}
	newestFirst(records, func(r model.DetectionRecord) time.Time { return r.CreatedAt })

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return commit(ctx, s, opLoadRecords, slices.Clone(records))
}
