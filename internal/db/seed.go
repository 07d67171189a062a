package db

import (
	"errors"

	"github.com/diewo77/go-production/internal/models"
	"gorm.io/gorm"
)

// Seed creates a demo project with a few phases when DB_SEED is set.
// Running it twice leaves a single copy of each record.
func Seed(db *gorm.DB) error {
	project := models.Project{Code: "DEMO", Name: "Projet de démonstration"}
	err := db.Where("code = ?", project.Code).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.Create(&project).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	phases := []models.Phase{
		{Name: "Études", MontantHT: 150_000},
		{Name: "Gros œuvre", MontantHT: 1_000_000},
		{Name: "Second œuvre", MontantHT: 420_000},
	}
	for _, ph := range phases {
		var existing models.Phase
		err := db.Where("project_id = ? AND name = ?", project.ID, ph.Name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ph.ProjectID = project.ID
			if err := db.Create(&ph).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
