package database

import "time"

// Parameter is one remote config value as stored by the parameter store.
// Version increases on every write of the key.
type Parameter struct {
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name used by every backend
func (Parameter) TableName() string {
	return "remote_config_parameters"
}
