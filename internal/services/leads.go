package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"face-shape-api/internal/models"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ErrInvalidEmail rejects addresses that do not look like an email.
var ErrInvalidEmail = errors.New("Invalid email")

// LeadsService persists captured emails, one row per (email, site).
type LeadsService struct {
	db *gorm.DB
}

// NewLeadsService opens the leads database at path and migrates the schema.
func NewLeadsService(path string) (*LeadsService, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Lead{}); err != nil {
		return nil, err
	}

	return &LeadsService{db: db}, nil
}

// Save normalizes and upserts a lead. Repeat submissions of the same
// (email, site) pair refresh the existing row instead of erroring.
func (s *LeadsService) Save(ctx context.Context, email, site string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}

	if site == "" {
		site = models.DefaultLeadSite
	}

	lead := models.Lead{
		Email:     email,
		Site:      site,
		UpdatedAt: time.Now(),
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}, {Name: "site"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&lead).Error
}

// Count returns the number of stored leads.
func (s *LeadsService) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Lead{}).Count(&count).Error
	return count, err
}

// HealthCheck verifies the database connection is alive.
func (s *LeadsService) HealthCheck(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
