package repository

import (
	"context"

	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

// UserRepository reads the user directory. Users are provisioned by the
// identity side; this service only creates them in fixtures and seeds.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) users(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.User{})
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID returns gorm.ErrRecordNotFound for unknown ids
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	user := new(domain.User)
	if err := r.users(ctx).Where("id = ?", id).Take(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ListByIDs returns the active users among ids, ordered by id. Callers
// compare lengths to detect unknown or deactivated members.
func (r *UserRepository) ListByIDs(ctx context.Context, ids []uint) ([]domain.User, error) {
	users := []domain.User{}
	if len(ids) == 0 {
		return users, nil
	}
	err := r.users(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Order("id").
		Find(&users).Error
	return users, err
}
