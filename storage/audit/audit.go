// Package audit persists committed governance events to a relational store
// and exports them for offline analysis.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"govchain/core/events"
	"govchain/core/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultListLimit = 500
)

// Record is one committed event.
type Record struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Type       string    `gorm:"index;not null"`
	ProposalID uint64    `gorm:"index"`
	Attributes string    `gorm:"type:text;not null"`
	RecordedAt time.Time `gorm:"index;not null"`
}

// TableName pins the table name regardless of naming strategy.
func (Record) TableName() string { return "governance_audit" }

// Decode returns the event attributes.
func (r Record) Decode() (map[string]string, error) {
	attrs := make(map[string]string)
	if strings.TrimSpace(r.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("audit: decode record %d: %w", r.ID, err)
	}
	return attrs, nil
}

// Filter narrows List and ExportParquet queries.
type Filter struct {
	ProposalID uint64
	Type       string
	Since      time.Time
	Limit      int
}

// Store appends governance events to the audit table.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// Open connects to the configured driver and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		if strings.TrimSpace(dsn) == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: database required")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Store{db: db, logger: slog.Default(), nowFn: time.Now}, nil
}

// SetLogger overrides the logger used to report failed appends.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetNowFunc overrides the timestamp source.
func (s *Store) SetNowFunc(now func() time.Time) {
	if now == nil {
		s.nowFn = time.Now
		return
	}
	s.nowFn = now
}

// Emit implements events.Emitter. Events that cannot render themselves are
// skipped.
func (s *Store) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok {
		return
	}
	if err := s.Append(context.Background(), payload.Event()); err != nil {
		s.logger.Error("audit append failed", slog.String("event", evt.EventType()), slog.String("error", err.Error()))
	}
}

// Append stores evt.
func (s *Store) Append(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return nil
	}
	encoded, err := json.Marshal(evt.Attributes)
	if err != nil {
		return fmt.Errorf("audit: encode attributes: %w", err)
	}
	record := Record{
		Type:       evt.Type,
		ProposalID: proposalID(evt),
		Attributes: string(encoded),
		RecordedAt: s.nowFn().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

func proposalID(evt *types.Event) uint64 {
	if !strings.HasPrefix(evt.Type, "gov.") {
		return 0
	}
	id, err := strconv.ParseUint(evt.Attributes["id"], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// List returns records matching filter in insertion order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := s.db.WithContext(ctx).Model(&Record{})
	if filter.ProposalID != 0 {
		query = query.Where("proposal_id = ?", filter.ProposalID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if !filter.Since.IsZero() {
		query = query.Where("recorded_at >= ?", filter.Since.UTC())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var records []Record
	if err := query.Order("id ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
