package database

import (
	"fmt"
	"strings"

	"workflowbridge/internal/model"

	"github.com/go-gormigrate/gormigrate/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seed describes the super admin created when the user table is empty.
// An empty AdminEmail skips seeding.
type Seed struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

var defaultDepartments = []model.Department{
	{Name: "General", Code: "GEN", Description: "General administration"},
	{Name: "Service", Code: "SVC", Description: "Customer service"},
	{Name: "Marketing", Code: "MKT", Description: "Marketing and communications"},
	{Name: "CIEG", Code: "CIEG", Description: "CIEG"},
	{Name: "DSC", Code: "DSC", Description: "DSC"},
	{Name: "MCG", Code: "MCG", Description: "MCG"},
	{Name: "Accounting", Code: "ACCT", Description: "Finance and accounting"},
	{Name: "Purchasing", Code: "PUR", Description: "Procurement"},
	{Name: "Human Resources", Code: "HR", Description: "People operations"},
	{Name: "Warehouse", Code: "WHSE", Description: "Warehouse and logistics"},
}

// Migrate applies the schema and bootstrap data migrations in order.
func Migrate(db *gorm.DB, seed Seed, log *zap.Logger) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202610190001_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.Department{},
					&model.User{},
					&model.FormTemplate{},
					&model.Request{},
					&model.Approval{},
					&model.Notification{},
					&model.AuditLog{},
					&model.Sequence{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					&model.Sequence{},
					&model.AuditLog{},
					&model.Notification{},
					"request_approvals",
					&model.Request{},
					&model.FormTemplate{},
					&model.User{},
					&model.Department{},
				)
			},
		},
		{
			ID: "202610190002_request_sequence",
			Migrate: func(tx *gorm.DB) error {
				var existing int64
				if err := tx.Model(&model.Request{}).Count(&existing).Error; err != nil {
					return err
				}
				return tx.Clauses(clause.OnConflict{DoNothing: true}).
					Create(&model.Sequence{Name: model.SequenceRequestNumber, Value: existing}).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Delete(&model.Sequence{}, "name = ?", model.SequenceRequestNumber).Error
			},
		},
		{
			ID: "202610190003_seed_defaults",
			Migrate: func(tx *gorm.DB) error {
				return seedDefaults(tx, seed, log)
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func seedDefaults(tx *gorm.DB, seed Seed, log *zap.Logger) error {
	if seed.AdminEmail == "" {
		log.Info("bootstrap seed skipped")
		return nil
	}

	var users int64
	if err := tx.Model(&model.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}

	var general *model.Department
	for _, d := range defaultDepartments {
		dept := d
		dept.IsActive = true
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&dept).Error; err != nil {
			return fmt.Errorf("failed to seed department %s: %w", dept.Code, err)
		}
		if dept.Code == "GEN" {
			general = &dept
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := model.User{
		Email:        strings.ToLower(seed.AdminEmail),
		Name:         seed.AdminName,
		PasswordHash: string(hash),
		Role:         model.RoleSuperAdmin,
		IsActive:     true,
	}
	if general != nil {
		admin.DepartmentID = &general.ID
	}
	if err := tx.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed super admin: %w", err)
	}

	log.Info("bootstrap data seeded",
		zap.Int("departments", len(defaultDepartments)),
		zap.String("admin_email", admin.Email),
	)
	return nil
}
