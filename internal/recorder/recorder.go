// Package recorder persists a best-effort audit trail of a replay run to a
// relational database. It mirrors the reference MySQL recorder's shape
// (GORM models, auto-migration, a thin wrapper type) but records replayed
// chain primitives and finalized position segments instead of portfolio
// snapshots. Recorder failures are logged and swallowed by the recorder
// itself; the audit trail is never part of the correctness-critical path.
package recorder

import (
	"fmt"
	"math/big"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lilyjjo/ammreplay/internal/ledger"
	"github.com/lilyjjo/ammreplay/internal/logging"
)

// AttemptRecord is one row per RecordAttempt call. The replay driver makes
// one call per replayed primitive: a mint, an increase, a burn-driven
// decrease, or a swap (kind swap_exact_in or swap_exact_out). Fee collects
// are not recorded. The driver always passes Attempt 1; retries inside
// chainops do not produce rows of their own.
type AttemptRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Block       uint64    `gorm:"index;not null"`
	LogIndex    uint64    `gorm:"not null"`
	Kind        string    `gorm:"type:varchar(32);not null;comment:mint, increase, decrease, swap_exact_in, swap_exact_out"`
	Attempt     int       `gorm:"not null;comment:1-indexed retry count"`
	Succeeded   bool      `gorm:"not null"`
	FailureNote string    `gorm:"type:varchar(512)"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (AttemptRecord) TableName() string {
	return "replay_attempts"
}

// SegmentRecord is one row per RecordSegment call, mirroring
// ledger.Segment's fields as database-portable strings. The replay driver
// records a segment when it is appended to the ledger (still open unless it
// is a terminal ClosePosition segment) and again when end-of-stream
// finalization closes it, and tabular.WriteSegmentsAudited records every
// written segment once more, so one segment can appear in several rows.
type SegmentRecord struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	LiveTokenID     string    `gorm:"type:varchar(78);not null;index"`
	RecordedTokenID string    `gorm:"type:varchar(78);not null;index"`
	SegmentIndex    int       `gorm:"not null"`
	Action          string    `gorm:"type:varchar(32);not null"`
	TickLower       int32     `gorm:"not null"`
	TickUpper       int32     `gorm:"not null"`
	OpenBlock       uint64    `gorm:"not null"`
	CloseBlock      uint64    `gorm:"not null"`
	FeesEarnedBase  string    `gorm:"type:varchar(78)"`
	FeesEarnedQuote string    `gorm:"type:varchar(78)"`
	NetGainBase     string    `gorm:"type:varchar(78)"`
	NetGainQuote    string    `gorm:"type:varchar(78)"`
	NetPnLQuote     string    `gorm:"type:varchar(128);comment:big.Float as string"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (SegmentRecord) TableName() string {
	return "replay_segments"
}

// MySQLRecorder persists attempts and finalized segments to a MySQL
// database via GORM, auto-migrating both tables on construction.
type MySQLRecorder struct {
	db  *gorm.DB
	log logging.Logger
}

// NewMySQLRecorder opens a MySQL connection using dsn (e.g.
// "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local")
// and auto-migrates the attempt and segment tables.
func NewMySQLRecorder(dsn string, log logging.Logger) (*MySQLRecorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to MySQL audit store: %w", err)
	}
	if err := db.AutoMigrate(&AttemptRecord{}, &SegmentRecord{}); err != nil {
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	return &MySQLRecorder{db: db, log: log}, nil
}

// RecordAttempt persists one replayed-primitive attempt. Failures are
// logged and swallowed: the caller's replay must not fail because the
// audit sink is unreachable.
func (r *MySQLRecorder) RecordAttempt(block, logIndex uint64, kind string, attempt int, succeeded bool, failureNote string) {
	if r == nil {
		return
	}
	rec := AttemptRecord{
		Block:       block,
		LogIndex:    logIndex,
		Kind:        kind,
		Attempt:     attempt,
		Succeeded:   succeeded,
		FailureNote: failureNote,
	}
	if err := r.db.Create(&rec).Error; err != nil {
		r.log.Warn().Str("kind", kind).Uint64(logging.FieldBlock, block).Err(err).Msg("recorder: failed to persist attempt")
	}
}

// RecordSegment persists one snapshot of a position segment.
func (r *MySQLRecorder) RecordSegment(seg *ledger.Segment) {
	if r == nil || seg == nil {
		return
	}
	rec := SegmentRecord{
		LiveTokenID:     bigIntToString(seg.LiveTokenID),
		RecordedTokenID: bigIntToString(seg.RecordedTokenID),
		SegmentIndex:    seg.Index,
		Action:          seg.Action.String(),
		TickLower:       seg.TickLower,
		TickUpper:       seg.TickUpper,
		OpenBlock:       seg.OpenBlock,
		CloseBlock:      seg.CloseBlock,
		FeesEarnedBase:  bigIntToString(seg.FeesEarnedBase),
		FeesEarnedQuote: bigIntToString(seg.FeesEarnedQuote),
		NetGainBase:     bigIntToString(seg.NetGainBase),
		NetGainQuote:    bigIntToString(seg.NetGainQuote),
		NetPnLQuote:     bigFloatToString(seg.NetPnLQuote),
	}
	if err := r.db.Create(&rec).Error; err != nil {
		r.log.Warn().Str("live_token_id", rec.LiveTokenID).Err(err).Msg("recorder: failed to persist segment")
	}
}

// Close releases the underlying database connection.
func (r *MySQLRecorder) Close() error {
	if r == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap MySQL audit connection: %w", err)
	}
	return sqlDB.Close()
}

func bigIntToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigFloatToString(v *big.Float) string {
	if v == nil {
		return "0"
	}
	return v.Text('f', 18)
}
