package uploader

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by GetByKey when no record matches the key.
var ErrNotFound = errors.New("aoi result not found")

// InsertOutcome tells whether an insert stored a new row or hit an existing
// (Serial_NMBR, Date_Time) key. Ignored is not an error: the original
// storage engine dropped duplicate keys silently, and callers must be able
// to continue their batch.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	Ignored
)

// ValidationError reports a record that violates the schema contract
// (missing required field or oversized text). It is raised before any
// storage mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid aoi result: %s %s", e.Field, e.Reason)
}

// Store persists AoiResult rows in an embedded SQLite database exposing the
// same columns as the original SMT_AOI_RESULTS table.
type Store struct {
	db       *gorm.DB
	validate *validator.Validate
}

func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&AoiResult{}, &ProcessedLog{}); err != nil {
		return nil, err
	}
	return &Store{db: db, validate: validator.New()}, nil
}

// OpenQueryStore opens an existing DB for querying without mutating schema.
// Reporting-side reads should use this so a typo'd path cannot create an
// empty database with a fresh schema.
func OpenQueryStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, validate: validator.New()}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	s.db = nil
	return err
}

func (s *Store) validateRecord(rec *AoiResult) error {
	err := s.validate.Struct(rec)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		reason := "is required"
		if fe.Tag() == "max" {
			reason = fmt.Sprintf("exceeds %s characters", fe.Param())
		}
		return &ValidationError{Field: fe.Field(), Reason: reason}
	}
	return err
}

// Insert stores one record. The record is validated before any mutation;
// an existing (Serial_NMBR, Date_Time) key yields (Ignored, nil) and the
// stored row keeps its original field values.
func (s *Store) Insert(rec *AoiResult) (InsertOutcome, error) {
	if err := s.validateRecord(rec); err != nil {
		return Ignored, err
	}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return Ignored, res.Error
	}
	if res.RowsAffected == 0 {
		return Ignored, nil
	}
	return Inserted, nil
}

// InsertBatch stores records in one multi-row statement with the same
// duplicate-ignore semantics as Insert. All records are validated up front,
// so a bad record fails the batch before anything is written. Returns the
// number of rows actually inserted and the number ignored as duplicates.
func (s *Store) InsertBatch(recs []AoiResult) (inserted int, ignored int, err error) {
	if len(recs) == 0 {
		return 0, 0, nil
	}
	for i := range recs {
		if err := s.validateRecord(&recs[i]); err != nil {
			return 0, 0, err
		}
	}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&recs)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	inserted = int(res.RowsAffected)
	return inserted, len(recs) - inserted, nil
}

// GetByKey returns the single record for (serial, ts) or ErrNotFound.
func (s *Store) GetByKey(serial string, ts time.Time) (*AoiResult, error) {
	var rec AoiResult
	err := s.db.Where("Serial_NMBR = ? AND Date_Time = ?", serial, ts).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetBySerial returns a lazy cursor over all records for one serial number,
// ordered by Date_Time ascending (the clustered order of the original
// table). An unknown serial yields an empty iteration, not an error.
func (s *Store) GetBySerial(serial string) *ResultIter {
	return &ResultIter{db: s.db, serial: serial}
}

// ResultIter iterates one serial's records in timestamp order. The query is
// issued on the first Next call; after the iteration ends (or Close is
// called) the next Next call restarts from the beginning.
type ResultIter struct {
	db     *gorm.DB
	serial string
	rows   *sql.Rows
	cur    AoiResult
	err    error
}

func (it *ResultIter) Next() bool {
	if it.err != nil {
		return false
	}
	if it.rows == nil {
		rows, err := it.db.Model(&AoiResult{}).
			Where("Serial_NMBR = ?", it.serial).
			Order("Date_Time asc").
			Rows()
		if err != nil {
			it.err = err
			return false
		}
		it.rows = rows
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		_ = it.rows.Close()
		it.rows = nil
		return false
	}
	if err := it.db.ScanRows(it.rows, &it.cur); err != nil {
		it.err = err
		_ = it.rows.Close()
		it.rows = nil
		return false
	}
	return true
}

// Record returns the row the last successful Next call moved to.
func (it *ResultIter) Record() AoiResult { return it.cur }

func (it *ResultIter) Err() error { return it.err }

func (it *ResultIter) Close() error {
	if it.rows == nil {
		return nil
	}
	err := it.rows.Close()
	it.rows = nil
	return err
}

// IsLogProcessed reports whether a source file (identified by path and
// content digest) was already ingested.
func (s *Store) IsLogProcessed(path string, sha string) (bool, error) {
	var pl ProcessedLog
	err := s.db.Where("path = ? AND sha256 = ?", path, sha).First(&pl).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Store) MarkLogProcessed(pl *ProcessedLog) error {
	return s.db.Create(pl).Error
}
