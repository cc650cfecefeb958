package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Setting is a runtime-editable key/value entry
type Setting struct {
	Key       string    `gorm:"primaryKey;column:setting_key;type:varchar(100)" json:"key"`
	Value     JSON      `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SettingTimeFrames holds the list of recognised time frame names
const SettingTimeFrames = "timeFrames"

// JSON is a wrapper for json.RawMessage with methods to implement the Scanner and Valuer interfaces
type JSON json.RawMessage

// Value returns the JSON value to be stored in the database
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan scans a JSON value from the database
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("null")
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source for JSON")
	}

	*j = JSON(bytes)
	return nil
}

// MarshalJSON returns the JSON encoding of j
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON sets *j to a copy of data
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("JSON: UnmarshalJSON on nil pointer")
	}
	*j = JSON(data)
	return nil
}

// GormDataType stores JSON as text so the column works on postgres and sqlite
func (JSON) GormDataType() string {
	return "text"
}
