package model

// Sequence is a named monotonically increasing counter.
type Sequence struct {
	Name  string `gorm:"type:varchar(50);primaryKey"`
	Value int64  `gorm:"not null"`
}

const SequenceRequestNumber = "request_number"
