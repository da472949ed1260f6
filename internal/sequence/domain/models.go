package domain

import "time"

// SequenceCounter is one named, scoped counter row. NextValue is the
// last issued number; it only ever moves forward, atomically.
type SequenceCounter struct {
	Scope     string    `gorm:"primaryKey;type:text"`
	NextValue int64     `gorm:"column:next_value;not null;default:0"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SequenceCounter) TableName() string { return "sequence_counters" }
