package services

import (
	"context"

	"github.com/listafacil/apiserver/types"
)

// UserRepository defines persistence operations for staff accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
	CountActiveAdmins(ctx context.Context) (int, error)
	UsernameOrEmailTaken(ctx context.Context, username, email string, excludeID int) (bool, error)
}

// UserService encapsulates staff-account use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	return s.repo.Update(ctx, user)
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *UserService) CountActiveAdmins(ctx context.Context) (int, error) {
	return s.repo.CountActiveAdmins(ctx)
}

func (s *UserService) UsernameOrEmailTaken(ctx context.Context, username, email string, excludeID int) (bool, error) {
	return s.repo.UsernameOrEmailTaken(ctx, username, email, excludeID)
}
