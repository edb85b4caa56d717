package usecase

import (
	"context"
	"errors"

	"story-ai-billing/internal/domain"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	// Register creates the user, or returns the existing row when the id is
	// already known.
	Register(ctx context.Context, id, email, language string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
}

func NewUserUseCase(users repository.UserRepository) *userUC {
	return &userUC{users: users}
}

func (u *userUC) Register(ctx context.Context, id, email, language string) (*model.User, error) {
	if id != "" {
		existing, err := u.users.FindByID(ctx, nil, id)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	user, err := model.NewUser(id, email, language)
	if err != nil {
		return nil, err
	}
	if err := u.users.Save(ctx, nil, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, nil, id)
}
