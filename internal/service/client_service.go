package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClientService links client records to login users
type ClientService struct {
	clientRepo  *repository.ClientRepository
	userRepo    *repository.UserRepository
	roleRepo    *repository.RoleRepository
	activities  *ActivityService
	invalidator *Invalidator
	logger      *zap.Logger
}

func NewClientService(
	clientRepo *repository.ClientRepository,
	userRepo *repository.UserRepository,
	roleRepo *repository.RoleRepository,
	activities *ActivityService,
	invalidator *Invalidator,
	logger *zap.Logger,
) *ClientService {
	return &ClientService{
		clientRepo:  clientRepo,
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		activities:  activities,
		invalidator: invalidator,
		logger:      logger,
	}
}

func (s *ClientService) loadClient(ctx context.Context, clientID uint) (*domain.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	return client, nil
}

// LinkUser attaches a login user to the client and grants them the client role
func (s *ClientService) LinkUser(ctx context.Context, clientID, userID uint) (*domain.Client, error) {
	actor, err := requireProjectManagement(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.loadClient(ctx, clientID); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.clientRepo.SetUser(ctx, clientID, &user.ID); err != nil {
		return nil, fmt.Errorf("failed to link client: %w", err)
	}
	if _, err := s.roleRepo.AddRole(ctx, user.ID, domain.RoleClient); err != nil {
		return nil, fmt.Errorf("failed to grant client role: %w", err)
	}

	s.activities.Record(ctx, ActionClientLinked, EntityClient, clientID, actor, user.Username)
	s.invalidator.Invalidate(ctx, MutationClientLink, nil, nil)
	s.logger.Info("client linked to user",
		zap.Uint("client_id", clientID),
		zap.Uint("user_id", user.ID),
		zap.Uint("actor_id", actor.UserID))

	return s.loadClient(ctx, clientID)
}

// UnlinkUser detaches the client's login user and revokes the client role
func (s *ClientService) UnlinkUser(ctx context.Context, clientID uint) (*domain.Client, error) {
	actor, err := requireProjectManagement(ctx)
	if err != nil {
		return nil, err
	}

	client, err := s.loadClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client.UserID == nil {
		return client, nil
	}
	userID := *client.UserID

	if err := s.clientRepo.SetUser(ctx, clientID, nil); err != nil {
		return nil, fmt.Errorf("failed to unlink client: %w", err)
	}
	if _, err := s.roleRepo.RemoveRole(ctx, userID, domain.RoleClient); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to revoke client role: %w", err)
	}

	s.activities.Record(ctx, ActionClientUnlinked, EntityClient, clientID, actor, "")
	s.invalidator.Invalidate(ctx, MutationClientLink, nil, nil)

	return s.loadClient(ctx, clientID)
}

// GetClient returns a client with its linked user
func (s *ClientService) GetClient(ctx context.Context, clientID uint) (*domain.Client, error) {
	if _, err := requireProjectManagement(ctx); err != nil {
		return nil, err
	}
	return s.loadClient(ctx, clientID)
}
