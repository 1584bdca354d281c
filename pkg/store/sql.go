package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
)

// calculationRow is the calculation_records table layout.
type calculationRow struct {
	Seq          uint64         `gorm:"primaryKey;autoIncrement"` // insertion order, breaks timestamp ties
	ID           string         `gorm:"size:36;not null;uniqueIndex"`
	BuildingID   string         `gorm:"size:24;not null;index:idx_calculation_records_building_time,priority:1"`
	MeasureName  string         `gorm:"not null"`
	CalculatedAt time.Time      `gorm:"not null;index:idx_calculation_records_building_time,priority:2"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime:false"`
	PeriodKeys   string         `gorm:"not null"` // ",business_hours,weekend,"
	Periods      datatypes.JSON `gorm:"not null"`
	Summary      datatypes.JSON `gorm:"not null"`
}

func (calculationRow) TableName() string {
	return "calculation_records"
}

// SQL stores records through gorm. Writes are plain INSERTs; no code path
// issues an UPDATE or DELETE.
type SQL struct {
	db *gorm.DB
}

var (
	_ efficiency.Store       = (*SQL)(nil)
	_ efficiency.PeriodStore = (*SQL)(nil)
)

// OpenPostgres connects to Postgres, retrying transient failures, and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	var db *gorm.DB
	err := connect(ctx, "postgres", func() error {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), gormConfig())
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	if err != nil {
		return nil, err
	}
	return newSQL(ctx, db)
}

// OpenSQLite opens (or creates) a SQLite database at path. ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return newSQL(ctx, db)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormLogger.New(
			log.New(slogWriter{slog.Default().With("component", "gorm")}, "", 0),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		TranslateError: true,
	}
}

func newSQL(ctx context.Context, db *gorm.DB) (*SQL, error) {
	if err := db.WithContext(ctx).AutoMigrate(&calculationRow{}); err != nil {
		return nil, fmt.Errorf("migrate calculation_records: %w", err)
	}
	return &SQL{db: db}, nil
}

// Insert writes rec as a new row.
func (s *SQL) Insert(ctx context.Context, rec efficiency.CalculationRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return persistenceError("encode record", err)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
		return persistenceError("insert", err)
	}
	return nil
}

// ByBuilding returns the building's records, newest first. Records with equal
// timestamps come back in reverse insertion order.
func (s *SQL) ByBuilding(ctx context.Context, buildingID string) ([]efficiency.CalculationRecord, error) {
	return s.find(ctx, s.db.WithContext(ctx).Where("building_id = ?", buildingID))
}

// ByBuildingPeriod returns, newest first, the building's records that include period p.
func (s *SQL) ByBuildingPeriod(ctx context.Context, buildingID string, p efficiency.Period) ([]efficiency.CalculationRecord, error) {
	q := s.db.WithContext(ctx).
		Where("building_id = ?", buildingID).
		Where("period_keys LIKE ?", "%,"+p.String()+",%")
	return s.find(ctx, q)
}

func (*SQL) find(_ context.Context, q *gorm.DB) ([]efficiency.CalculationRecord, error) {
	var rows []calculationRow
	if err := q.Order("calculated_at DESC").Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, persistenceError("query", err)
	}
	out := make([]efficiency.CalculationRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record()
		if err != nil {
			return nil, persistenceError("decode record "+rows[i].ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Ping checks the database connection.
func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return persistenceError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return persistenceError("ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(rec efficiency.CalculationRecord) (calculationRow, error) {
	periods, err := json.Marshal(rec.Periods)
	if err != nil {
		return calculationRow{}, fmt.Errorf("periods: %w", err)
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return calculationRow{}, fmt.Errorf("summary: %w", err)
	}
	keys := make([]string, 0, len(rec.Periods))
	for i := range rec.Periods {
		keys = append(keys, rec.Periods[i].Period.String())
	}
	return calculationRow{
		ID:           rec.ID,
		BuildingID:   rec.BuildingID,
		MeasureName:  rec.MeasureName,
		CalculatedAt: rec.CalculationTimestamp.UTC(),
		CreatedAt:    rec.CreatedAt.UTC(),
		PeriodKeys:   "," + strings.Join(keys, ",") + ",",
		Periods:      datatypes.JSON(periods),
		Summary:      datatypes.JSON(summary),
	}, nil
}

func (r *calculationRow) record() (efficiency.CalculationRecord, error) {
	rec := efficiency.CalculationRecord{
		ID:                   r.ID,
		BuildingID:           r.BuildingID,
		MeasureName:          r.MeasureName,
		CalculationTimestamp: r.CalculatedAt.UTC(),
		CreatedAt:            r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(r.Periods, &rec.Periods); err != nil {
		return efficiency.CalculationRecord{}, fmt.Errorf("periods: %w", err)
	}
	if err := json.Unmarshal(r.Summary, &rec.Summary); err != nil {
		return efficiency.CalculationRecord{}, fmt.Errorf("summary: %w", err)
	}
	return rec, nil
}

// slogWriter adapts gorm's printf-style logger to slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	w.logger.Warn(strings.TrimSpace(string(p)))
	return len(p), nil
}
