package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"readlater/pkg/domain"
)

const migrateLockID int64 = 52105210

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&ProfileModel{}, &ContentModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveProfile registers or updates a profile.
func (s *GormStore) SaveProfile(u domain.User) error {
	model := profileToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "updated_at"}),
	}).Create(&model).Error
}

// HasProfileEmail checks if email exists.
func (s *GormStore) HasProfileEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&ProfileModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetProfileByEmail looks up a profile by email.
func (s *GormStore) GetProfileByEmail(email string) (domain.User, bool, error) {
	var model ProfileModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return profileFromModel(model), true, nil
}

// GetProfileByID returns a profile by ID.
func (s *GormStore) GetProfileByID(id string) (domain.User, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return profileFromModel(model), true, nil
}

// CreateContent inserts exactly one content row.
func (s *GormStore) CreateContent(c domain.Content) error {
	model := contentToModel(c)
	return s.db.Create(&model).Error
}

// ListContentByProfile returns all content rows owned by the profile.
func (s *GormStore) ListContentByProfile(profileID string) ([]domain.Content, error) {
	var models []ContentModel
	if err := s.db.Where("profile_id = ?", profileID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Content, 0, len(models))
	for _, m := range models {
		res = append(res, contentFromModel(m))
	}
	return res, nil
}

// SetContentChecked updates the checked flag of an owned row.
// Filtering on profile_id keeps one user from toggling another user's rows.
func (s *GormStore) SetContentChecked(id, profileID string, checked bool) (domain.Content, bool, error) {
	tx := s.db.Model(&ContentModel{}).
		Where("id = ? AND profile_id = ?", id, profileID).
		Update("checked", checked)
	if tx.Error != nil {
		return domain.Content{}, false, tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.Content{}, false, nil
	}
	var model ContentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		return domain.Content{}, false, err
	}
	return contentFromModel(model), true, nil
}

func profileToModel(u domain.User) ProfileModel {
	return ProfileModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func profileFromModel(m ProfileModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func contentToModel(c domain.Content) ContentModel {
	return ContentModel{
		ID:        c.ID,
		URL:       c.URL,
		ProfileID: c.ProfileID,
		Checked:   c.Checked,
		CreatedAt: c.CreatedAt,
	}
}

func contentFromModel(m ContentModel) domain.Content {
	return domain.Content{
		ID:        m.ID,
		URL:       m.URL,
		ProfileID: m.ProfileID,
		Checked:   m.Checked,
		CreatedAt: m.CreatedAt,
	}
}
