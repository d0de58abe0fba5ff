package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"moneta/core/types"
)

// Record is one persisted engine event. Attributes are stored as the JSON
// encoding of the event's attribute map.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type       string    `gorm:"index"`
	Attributes string
	CreatedAt  time.Time `gorm:"index"`
}

// Sink streams engine events into a sqlite database. It implements the
// events emitter interface, so it can be wired directly into the engine
// (typically fanned out alongside the RPC stream).
type Sink struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open creates or opens the audit database at path. ":memory:" is accepted
// for tests and ephemeral tooling.
func Open(path string, log *slog.Logger) (*Sink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("audit: database path must be configured")
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("audit: migrate schema: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sink{db: db, log: log}, nil
}

// Emit implements the emitter interface. Persistence failures are logged and
// swallowed: audit is an observer and must never fail an engine operation.
func (s *Sink) Emit(evt *types.Event) {
	if s == nil || evt == nil {
		return
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		s.log.Error("audit: encode event attributes", "type", evt.Type, "error", err)
		return
	}
	record := Record{
		ID:         uuid.New(),
		Type:       evt.Type,
		Attributes: string(attrs),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.log.Error("audit: persist event", "type", evt.Type, "error", err)
	}
}

// Recent returns the newest records, most recent first.
func (s *Sink) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []Record
	err := s.db.Order("created_at desc").Limit(limit).Find(&records).Error
	return records, err
}

// ByType returns the newest records of one event type, most recent first.
func (s *Sink) ByType(eventType string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []Record
	err := s.db.Where("type = ?", eventType).Order("created_at desc").Limit(limit).Find(&records).Error
	return records, err
}

// Close releases the underlying database handle.
func (s *Sink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
