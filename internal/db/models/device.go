package models

import "time"

// AlarmConfig holds the per-metric alarm thresholds of a device
type AlarmConfig struct {
	CurrentEnabled   bool    `gorm:"column:current_alarm_enabled" json:"isCurrentAlarmEnabled"`
	CurrentThreshold float64 `gorm:"column:current_alarm_threshold" json:"currentAlarmThreshold"`
	VoltageEnabled   bool    `gorm:"column:voltage_alarm_enabled" json:"isVoltageAlarmEnabled"`
	VoltageThreshold float64 `gorm:"column:voltage_alarm_threshold" json:"voltageAlarmThreshold"`
	PowerEnabled     bool    `gorm:"column:power_alarm_enabled" json:"isPowerAlarmEnabled"`
	PowerThreshold   float64 `gorm:"column:power_alarm_threshold" json:"powerAlarmThreshold"`
}

// Device represents a remote metering device that can be switched on and off
type Device struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"userId"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
	Host        string `gorm:"not null" json:"host"`
	// KeyHash is the bcrypt hash of the key the device presents when posting samples
	KeyHash   string      `gorm:"not null" json:"-"`
	IsRunning bool        `gorm:"not null;default:false" json:"isRunning"`
	Alarm     AlarmConfig `gorm:"embedded" json:"alarmConfig"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	// Relationships
	ScheduledWindows []ScheduleWindow `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE" json:"scheduledWindows"`
}

// ScheduleWindow is an operator configured period during which a device should
// be running. Dates are YYYY-MM-DD and times HH:MM wall clock.
type ScheduleWindow struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	DeviceID  uint   `gorm:"not null;index" json:"deviceId"`
	StartDate string `gorm:"type:varchar(10);not null" json:"startDate"`
	StartTime string `gorm:"type:varchar(5);not null" json:"startTime"`
	EndDate   string `gorm:"type:varchar(10);not null" json:"endDate"`
	EndTime   string `gorm:"type:varchar(5);not null" json:"endTime"`
}
