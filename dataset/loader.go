package dataset

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"noshow-prediction-api/config"
	"noshow-prediction-api/models"
)

const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Load reads the configured source and builds the Store. db is only used for
// the postgres source and may be nil otherwise.
func Load(ctx context.Context, cfg config.DatasetConfig, db *gorm.DB) (*Store, error) {
	var (
		records []models.Appointment
		err     error
	)

	switch cfg.Source {
	case SourceCSV:
		records, err = LoadCSV(cfg.Path)
	case SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("dataset source %q requires a database connection", cfg.Source)
		}
		records, err = LoadPostgres(ctx, db, cfg.Table)
	case SourceSQLite:
		records, err = LoadSQLite(ctx, cfg.Path, cfg.Table)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s dataset: %w", cfg.Source, err)
	}
	return NewStore(records)
}
