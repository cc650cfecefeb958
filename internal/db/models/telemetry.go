package models

// Sample is one raw electrical reading reported by a device.
// CreatedAt is an epoch-millisecond timestamp supplied by the device or
// stamped on ingestion.
type Sample struct {
	ID        uint    `gorm:"primarykey" json:"id"`
	DeviceID  uint    `gorm:"not null;index:idx_samples_device_time,priority:1" json:"deviceId"`
	Current   float64 `gorm:"not null" json:"current"`
	Voltage   float64 `gorm:"not null" json:"voltage"`
	Power     float64 `gorm:"not null" json:"power"`
	CreatedAt int64   `gorm:"autoCreateTime:milli;not null;index:idx_samples_device_time,priority:2;index:idx_samples_time" json:"createdAt"`
}

// TableName overrides the table name for Sample
func (Sample) TableName() string {
	return "samples"
}

// RollupRecord summarises one UTC calendar day of samples for one device.
// The (device_id, window_start) pair is unique.
type RollupRecord struct {
	ID          uint    `gorm:"primarykey" json:"id"`
	DeviceID    uint    `gorm:"not null;uniqueIndex:idx_rollups_device_window,priority:1" json:"deviceId"`
	WindowStart int64   `gorm:"not null;uniqueIndex:idx_rollups_device_window,priority:2;index" json:"windowStart"`
	SampleCount int     `gorm:"not null" json:"sampleCount"`
	AvgCurrent  float64 `json:"avgCurrent"`
	AvgVoltage  float64 `json:"avgVoltage"`
	AvgPower    float64 `json:"avgPower"`
}

// TableName overrides the table name for RollupRecord
func (RollupRecord) TableName() string {
	return "rollup_records"
}
