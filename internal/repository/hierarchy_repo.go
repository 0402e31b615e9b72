package repository

import (
	"context"

	"ims-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HierarchyRepository reads the reporting-hierarchy reference data. This
// subsystem never writes it.
type HierarchyRepository interface {
	FindUnit(ctx context.Context, id uuid.UUID) (*model.OrgUnit, error)
	FindEdgeByMember(ctx context.Context, memberID uuid.UUID) (*model.HierarchyEdge, error)
}

type hierarchyRepository struct {
	db *gorm.DB
}

func NewHierarchyRepository(db *gorm.DB) HierarchyRepository {
	return &hierarchyRepository{db: db}
}

func (r *hierarchyRepository) FindUnit(ctx context.Context, id uuid.UUID) (*model.OrgUnit, error) {
	var unit model.OrgUnit
	if err := GetDB(ctx, r.db).First(&unit, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *hierarchyRepository) FindEdgeByMember(ctx context.Context, memberID uuid.UUID) (*model.HierarchyEdge, error) {
	var edge model.HierarchyEdge
	if err := GetDB(ctx, r.db).First(&edge, "member_id = ?", memberID).Error; err != nil {
		return nil, err
	}
	return &edge, nil
}
