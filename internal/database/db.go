package database

import (
	"ims-backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate auto-migrates all workflow models. Split out so tests can run it
// against their own database handle.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Role{},
		&model.Permission{},
		&model.OrgUnit{},
		&model.HierarchyEdge{},
		&model.StockItem{},
		&model.StockReservation{},
		&model.StockTransaction{},
		&model.Request{},
		&model.RequestItem{},
		&model.ApprovalEnvelope{},
		&model.ApprovalItemDecision{},
		&model.ApprovalHistory{},
	)
}
