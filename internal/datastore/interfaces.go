// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mkallio/skycast-go/internal/conf"
	"github.com/mkallio/skycast-go/internal/errors"
	"github.com/mkallio/skycast-go/internal/logging"
)

// Interface abstracts the underlying database implementation and defines the
// operations the telemetry and forecast pipeline needs.
type Interface interface {
	Open() error
	Close() error

	// readings and their sky images
	SaveReading(reading *Reading) error
	UpsertReadingImage(readingID uint, imageURL string) error
	SaveReadingWithImage(reading *Reading, imageURL string) error
	GetReading(id uint) (Reading, error)
	LatestReading() (Reading, error)
	ReadingsForDay(dayStart time.Time) ([]Reading, error)
	ReadingsBetween(start, end time.Time) ([]Reading, error)
	CountReadingsForDay(dayStart time.Time) (int64, error)
	MostRecentImageAtOrBefore(ts time.Time) (ReadingImage, error)

	// forecasts
	HasForecastFor(targetTime time.Time) (bool, error)
	SaveForecast(record *ForecastRecord) (inserted bool, err error)
	LatestForecast() (ForecastRecord, error)
	ForecastsBetween(start, end time.Time) ([]ForecastRecord, error)
	NextForecastAfter(ts time.Time) (ForecastRecord, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB  *gorm.DB
	log *slog.Logger
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{log: logging.ForService("datastore")},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{log: logging.ForService("datastore")},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// validateReading rejects rows the schema cannot represent meaningfully.
func validateReading(reading *Reading) error {
	if reading == nil {
		return errors.Newf("reading is nil").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if reading.Timestamp.IsZero() {
		return errors.Newf("reading timestamp is required").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// SaveReading inserts a single sensor reading row.
func (ds *DataStore) SaveReading(reading *Reading) error {
	if err := validateReading(reading); err != nil {
		return err
	}
	if err := ds.DB.Create(reading).Error; err != nil {
		return errors.New(fmt.Errorf("saving reading: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// UpsertReadingImage inserts or replaces the image URL for a reading.
// Keyed on reading_id, last writer wins on image_url and stored_at.
func (ds *DataStore) UpsertReadingImage(readingID uint, imageURL string) error {
	if imageURL == "" {
		return errors.Newf("image URL is required").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	img := ReadingImage{
		ReadingID: readingID,
		ImageURL:  imageURL,
		StoredAt:  time.Now().UTC(),
	}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reading_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"image_url", "stored_at"}),
	}).Create(&img).Error
	if err != nil {
		return errors.New(fmt.Errorf("upserting reading image: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("reading_id", readingID).
			Build()
	}
	return nil
}

// SaveReadingWithImage stores a reading and its sky image inside one
// transaction. On any failure the transaction rolls back and neither row is
// visible to readers.
func (ds *DataStore) SaveReadingWithImage(reading *Reading, imageURL string) error {
	if err := validateReading(reading); err != nil {
		return err
	}
	if imageURL == "" {
		return errors.Newf("image URL is required").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reading).Error; err != nil {
			return fmt.Errorf("saving reading: %w", err)
		}
		img := ReadingImage{
			ReadingID: reading.ID,
			ImageURL:  imageURL,
			StoredAt:  time.Now().UTC(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reading_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"image_url", "stored_at"}),
		}).Create(&img).Error; err != nil {
			return fmt.Errorf("saving reading image: %w", err)
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// GetReading retrieves a reading by its ID.
func (ds *DataStore) GetReading(id uint) (Reading, error) {
	var reading Reading
	if err := ds.DB.Preload("Image").First(&reading, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Reading{}, errors.New(fmt.Errorf("reading %d not found", id)).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return Reading{}, errors.New(fmt.Errorf("getting reading %d: %w", id, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return reading, nil
}

// LatestReading returns the reading with the newest timestamp together with
// its image, for the live dashboard view.
func (ds *DataStore) LatestReading() (Reading, error) {
	var reading Reading
	err := ds.DB.Preload("Image").Order("timestamp DESC").First(&reading).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Reading{}, errors.New(fmt.Errorf("no readings stored")).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return Reading{}, errors.New(fmt.Errorf("getting latest reading: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return reading, nil
}

// ReadingsForDay returns readings whose timestamp falls inside the 24 hours
// starting at dayStart, in ascending order.
func (ds *DataStore) ReadingsForDay(dayStart time.Time) ([]Reading, error) {
	return ds.ReadingsBetween(dayStart, dayStart.Add(24*time.Hour))
}

// ReadingsBetween returns readings in [start, end) ordered by timestamp.
func (ds *DataStore) ReadingsBetween(start, end time.Time) ([]Reading, error) {
	var readings []Reading
	err := ds.DB.Preload("Image").
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&readings).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("getting readings between %s and %s: %w", start, end, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return readings, nil
}

// CountReadingsForDay counts readings whose timestamp falls inside the
// 24 hours starting at dayStart. The caller computes dayStart in the
// station's local offset.
func (ds *DataStore) CountReadingsForDay(dayStart time.Time) (int64, error) {
	var count int64
	err := ds.DB.Model(&Reading{}).
		Where("timestamp >= ? AND timestamp < ?", dayStart, dayStart.Add(24*time.Hour)).
		Count(&count).Error
	if err != nil {
		return 0, errors.New(fmt.Errorf("counting readings for day %s: %w", dayStart.Format("2006-01-02"), err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count, nil
}

// MostRecentImageAtOrBefore returns the sky image of the latest reading whose
// timestamp is at or before ts. Defined on stored timestamps rather than
// arrival order, so out-of-order uploads resolve correctly.
func (ds *DataStore) MostRecentImageAtOrBefore(ts time.Time) (ReadingImage, error) {
	var img ReadingImage
	err := ds.DB.Model(&ReadingImage{}).
		Joins("JOIN readings ON readings.id = reading_images.reading_id").
		Where("readings.timestamp <= ?", ts).
		Order("readings.timestamp DESC").
		First(&img).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReadingImage{}, errors.New(fmt.Errorf("no sky image at or before %s", ts.Format(time.RFC3339))).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return ReadingImage{}, errors.New(fmt.Errorf("resolving scoring image: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return img, nil
}

// HasForecastFor reports whether a forecast already exists for targetTime.
// This is a fast-path check only, the authoritative guard is the unique
// index consulted by SaveForecast.
func (ds *DataStore) HasForecastFor(targetTime time.Time) (bool, error) {
	var count int64
	err := ds.DB.Model(&ForecastRecord{}).
		Where("forecast_time = ?", targetTime).
		Count(&count).Error
	if err != nil {
		return false, errors.New(fmt.Errorf("checking forecast for %s: %w", targetTime.Format(time.RFC3339), err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count > 0, nil
}

// SaveForecast inserts a forecast record. A conflicting forecast_time is
// dropped by the storage engine and reported as inserted=false with a nil
// error, keeping retriggered runs idempotent.
func (ds *DataStore) SaveForecast(record *ForecastRecord) (bool, error) {
	result := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "forecast_time"}},
		DoNothing: true,
	}).Create(record)
	if result.Error != nil {
		return false, errors.New(fmt.Errorf("saving forecast: %w", result.Error)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("forecast_time", record.ForecastTime.Format(time.RFC3339)).
			Build()
	}
	return result.RowsAffected > 0, nil
}

// LatestForecast returns the most recent forecast by target time.
func (ds *DataStore) LatestForecast() (ForecastRecord, error) {
	var record ForecastRecord
	err := ds.DB.Order("forecast_time DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ForecastRecord{}, errors.New(fmt.Errorf("no forecasts stored")).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return ForecastRecord{}, errors.New(fmt.Errorf("getting latest forecast: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return record, nil
}

// ForecastsBetween returns forecasts with target time in [start, end) in
// ascending order.
func (ds *DataStore) ForecastsBetween(start, end time.Time) ([]ForecastRecord, error) {
	var records []ForecastRecord
	err := ds.DB.
		Where("forecast_time >= ? AND forecast_time < ?", start, end).
		Order("forecast_time ASC").
		Find(&records).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("getting forecasts between %s and %s: %w", start, end, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return records, nil
}

// NextForecastAfter returns the first forecast whose target time is after ts.
func (ds *DataStore) NextForecastAfter(ts time.Time) (ForecastRecord, error) {
	var record ForecastRecord
	err := ds.DB.
		Where("forecast_time > ?", ts).
		Order("forecast_time ASC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ForecastRecord{}, errors.New(fmt.Errorf("no forecast after %s", ts.Format(time.RFC3339))).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return ForecastRecord{}, errors.New(fmt.Errorf("getting next forecast: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return record, nil
}

// performAutoMigration automates database migrations with error handling.
func (ds *DataStore) performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if ds.log == nil {
		ds.log = logging.ForService("datastore")
	}

	if err := db.AutoMigrate(&Reading{}, &ReadingImage{}, &ForecastRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		ds.log.Info("Database connection initialized",
			"type", dbType,
			"connection", connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      gormlogger.Warn,
			Colorful:      true,
		},
	)
}
