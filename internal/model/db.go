package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Source{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Codebook{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Code{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Selection{}); err != nil {
		return err
	}

	return nil
}
