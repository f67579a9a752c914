package repository

import (
	"context"

	"github.com/straye-as/pipeline-api/internal/domain"
	"gorm.io/gorm"
)

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Omit("User").Create(client).Error
}

func (r *ClientRepository) GetByID(ctx context.Context, id uint) (*domain.Client, error) {
	var client domain.Client
	if err := r.db.WithContext(ctx).Preload("User").First(&client, id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// SetUser links the client to a login user, or unlinks it when userID is nil
func (r *ClientRepository) SetUser(ctx context.Context, clientID uint, userID *uint) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("id = ?", clientID).
		Update("user_id", userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
