package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/service"
	"doodle/backend/internal/store"
)

var (
	ErrEmailTaken = fmt.Errorf("%w: email already registered", store.ErrConflict)
	// ErrUserInMeetings is returned when deleting a user that still organizes
	// or participates in a meeting.
	ErrUserInMeetings = fmt.Errorf("%w: user still belongs to meetings", store.ErrConflict)
)

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

type CreateInput struct {
	Email string
	Name  string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.User, error) {
	email, name, err := normalize(in.Email, in.Name)
	if err != nil {
		return domain.User{}, err
	}

	var out domain.User
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetUserByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		u, err := tx.CreateUser(ctx, domain.User{Email: email, Name: name})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrEmailTaken
			}
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return domain.User{}, emailTaken(err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.User, error) {
	if id == uuid.Nil {
		return domain.User{}, service.Validationf("user_id is required")
	}
	u, err := s.store.GetUser(ctx, id)
	return u, service.NotFound(err, service.ErrUserNotFound)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, service.Validationf("email is required")
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	return u, service.NotFound(err, service.ErrUserNotFound)
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}

type UpdateInput struct {
	ID    uuid.UUID
	Email string
	Name  string
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (domain.User, error) {
	if in.ID == uuid.Nil {
		return domain.User{}, service.Validationf("user_id is required")
	}
	email, name, err := normalize(in.Email, in.Name)
	if err != nil {
		return domain.User{}, err
	}

	var out domain.User
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetUser(ctx, in.ID); err != nil {
			return service.NotFound(err, service.ErrUserNotFound)
		}
		other, err := tx.GetUserByEmail(ctx, email)
		switch {
		case err == nil && other.ID != in.ID:
			return ErrEmailTaken
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}
		u, err := tx.UpdateUser(ctx, domain.User{ID: in.ID, Email: email, Name: name})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrEmailTaken
			}
			return service.NotFound(err, service.ErrUserNotFound)
		}
		out = u
		return nil
	})
	if err != nil {
		return domain.User{}, emailTaken(err)
	}
	return out, nil
}

// Delete removes the user together with their calendar and slots.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return service.Validationf("user_id is required")
	}
	return s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockCalendars(ctx, id); err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, id); err != nil {
			return service.NotFound(err, service.ErrUserNotFound)
		}
		organized, err := tx.ListMeetingsByOrganizer(ctx, id)
		if err != nil {
			return err
		}
		joined, err := tx.ListMeetingsByParticipant(ctx, id)
		if err != nil {
			return err
		}
		if len(organized) > 0 || len(joined) > 0 {
			return ErrUserInMeetings
		}
		return service.NotFound(tx.DeleteUser(ctx, id), service.ErrUserNotFound)
	})
}

// emailTaken reports a conflict raised at commit, when a concurrent writer
// registered the same email first, as ErrEmailTaken.
func emailTaken(err error) error {
	if errors.Is(err, store.ErrConflict) && !errors.Is(err, ErrUserInMeetings) {
		return ErrEmailTaken
	}
	return err
}

func normalize(email, name string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" {
		return "", "", service.Validationf("email is required")
	}
	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return "", "", service.Validationf("email %q is not valid", email)
	}
	if name == "" {
		return "", "", service.Validationf("name is required")
	}
	if len(name) > 200 {
		return "", "", service.Validationf("name too long")
	}
	return email, name, nil
}
