// model.go this code defines the data model for the application
package datastore

import "time"

// Reading represents one timestamped sensor sample uploaded by the field
// device. Rows are immutable once written and never deleted by this service.
type Reading struct {
	ID            uint      `gorm:"primaryKey"`
	Timestamp     time.Time `gorm:"index:idx_readings_timestamp"` // device-reported, UTC
	TemperatureC  float64
	TemperatureF  float64
	Humidity      float64
	Pressure      float64
	WindSpeed     float64
	WindDirection float64
	WindMaxSpeed  float64
	Rain          float64
	UV            float64
	UVI           float64
	LightLux      float64
	BatteryOK     bool

	Image *ReadingImage `gorm:"foreignKey:ReadingID;constraint:OnDelete:CASCADE"` // at most one sky image per reading
}

// ReadingImage holds the blob-store URL of the sky-camera frame associated
// with a reading. A second upload for the same reading replaces the URL, the
// system tracks only the latest image per reading.
type ReadingImage struct {
	ID        uint      `gorm:"primaryKey"`
	ReadingID uint      `gorm:"uniqueIndex;not null"` // unique foreign key to Reading
	ImageURL  string    `gorm:"type:text"`
	StoredAt  time.Time `gorm:"index"`
}

// ForecastRecord is the output of one inference run. The unique index on
// ForecastTime is what enforces at-most-one forecast per target instant,
// duplicate inserts are dropped at the storage engine.
type ForecastRecord struct {
	ID              uint      `gorm:"primaryKey"`
	SourceReadingID uint      `gorm:"index"` // the Reading whose image was scored
	ForecastTime    time.Time `gorm:"uniqueIndex:idx_forecasts_forecast_time"`
	PredictedValue  float64   // inverse-scaled irradiance proxy
	CreatedAt       time.Time
}
