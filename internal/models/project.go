package models

import (
	"time"
)

// Project groups the phases of a contracted job.
// Companies and organizational units are owned by the surrounding application;
// only the unit reference is kept here.
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UnitID uint   `gorm:"index" json:"unit_id"`
	Code   string `gorm:"size:50;uniqueIndex" json:"code"`
	Name   string `gorm:"size:255;not null" json:"name"`

	Phases []Phase `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"phases,omitempty"`
}
