package service

import (
	"context"
	"fmt"

	"ims-backend/internal/middleware"
	"ims-backend/internal/model"

	"gorm.io/gorm"
)

// SeedDefaultRolesAndPermissions creates the fixed permission set and the
// three built-in roles if not already present. Runs at startup so a fresh
// database can authorize requests without manual SQL; existing rows are
// updated in place, never duplicated.
func SeedDefaultRolesAndPermissions(ctx context.Context, db *gorm.DB) error {
	defaultPermissions := []model.Permission{
		{Code: "requests.submit", Name: "Submit stock issuance requests", Group: "requests"},
		{Code: "requests.read", Name: "View stock issuance requests", Group: "requests"},
		{Code: "requests.decide", Name: "Approve / reject / return / forward requests", Group: "requests"},
		{Code: "stock.read", Name: "View stock catalog and movements", Group: "stock"},
		{Code: "stock.write", Name: "Manage stock intake and reservations", Group: "stock"},
		{Code: "users.read", Name: "View users", Group: "users"},
		{Code: "users.write", Name: "Manage users", Group: "users"},
		{Code: "users.delete", Name: "Delete users", Group: "users"},
	}

	for i := range defaultPermissions {
		p := &defaultPermissions[i]
		var existing model.Permission
		result := db.WithContext(ctx).Where("code = ?", p.Code).First(&existing)
		if result.Error != nil {
			if err := db.WithContext(ctx).Create(p).Error; err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", p.Code, err)
			}
		} else {
			p.ID = existing.ID
			db.WithContext(ctx).Exec(
				`UPDATE permissions SET name = ?, "group" = ? WHERE id = ?`,
				p.Name, p.Group, existing.ID,
			)
		}
	}

	permByCode := make(map[string]model.Permission, len(defaultPermissions))
	for _, p := range defaultPermissions {
		permByCode[p.Code] = p
	}

	roleDefinitions := map[string]struct {
		Description string
		PermCodes   []string
	}{
		"admin": {
			Description: "Administrator with full access",
			PermCodes: []string{
				"requests.submit", "requests.read", "requests.decide",
				"stock.read", "stock.write",
				"users.read", "users.write", "users.delete",
			},
		},
		"supervisor": {
			Description: "Approves requests and manages stock",
			PermCodes: []string{
				"requests.submit", "requests.read", "requests.decide",
				"stock.read", "stock.write",
			},
		},
		"staff": {
			Description: "Submits and tracks own requests",
			PermCodes: []string{
				"requests.submit", "requests.read",
				"stock.read",
			},
		},
	}

	for roleName, def := range roleDefinitions {
		var role model.Role
		result := db.WithContext(ctx).Where("name = ?", roleName).First(&role)
		if result.Error != nil {
			role = model.Role{
				Name:        roleName,
				Description: def.Description,
				IsSystem:    true,
			}
			if err := db.WithContext(ctx).Create(&role).Error; err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", roleName, err)
			}
		}

		perms := make([]model.Permission, 0, len(def.PermCodes))
		for _, code := range def.PermCodes {
			if p, ok := permByCode[code]; ok {
				perms = append(perms, p)
			}
		}
		if err := db.WithContext(ctx).Model(&role).Association("Permissions").Replace(perms); err != nil {
			return fmt.Errorf("failed to assign permissions to role '%s': %w", roleName, err)
		}
	}

	// Seeded codes must be visible to the next permission check.
	middleware.ClearPermissionCache("")

	return nil
}
