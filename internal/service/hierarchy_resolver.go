package service

import (
	"context"
	"errors"
	"fmt"

	"ims-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HierarchyResolver resolves the next approver in the reporting chain.
// Pure lookups with no side effects: calling it twice with the same inputs
// yields the same approver.
type HierarchyResolver interface {
	// NextApprover returns the direct supervisor of the unit when
	// previousApprover is nil (first submission), or the escalation target
	// one level above previousApprover (forwarding). An unrouteable
	// request is a configuration error: ErrNoApproverConfigured.
	NextApprover(ctx context.Context, unitID uuid.UUID, previousApprover *uuid.UUID) (uuid.UUID, error)
}

type hierarchyResolver struct {
	repo repository.HierarchyRepository
}

func NewHierarchyResolver(repo repository.HierarchyRepository) HierarchyResolver {
	return &hierarchyResolver{repo: repo}
}

func (r *hierarchyResolver) NextApprover(ctx context.Context, unitID uuid.UUID, previousApprover *uuid.UUID) (uuid.UUID, error) {
	if previousApprover == nil {
		return r.unitSupervisor(ctx, unitID)
	}
	return r.escalationTarget(ctx, *previousApprover)
}

func (r *hierarchyResolver) unitSupervisor(ctx context.Context, unitID uuid.UUID) (uuid.UUID, error) {
	unit, err := r.repo.FindUnit(ctx, unitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("unit %s: %w", unitID, ErrNoApproverConfigured)
		}
		return uuid.Nil, fmt.Errorf("failed to look up unit: %w", err)
	}
	if unit.SupervisorID == nil {
		return uuid.Nil, fmt.Errorf("unit %q has no supervisor: %w", unit.Name, ErrNoApproverConfigured)
	}
	return *unit.SupervisorID, nil
}

func (r *hierarchyResolver) escalationTarget(ctx context.Context, previous uuid.UUID) (uuid.UUID, error) {
	edge, err := r.repo.FindEdgeByMember(ctx, previous)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("approver %s has no escalation target: %w", previous, ErrNoApproverConfigured)
		}
		return uuid.Nil, fmt.Errorf("failed to look up hierarchy edge: %w", err)
	}
	return edge.SupervisorID, nil
}
