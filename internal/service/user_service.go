package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/digkill/petdance/internal/auth"
	"github.com/digkill/petdance/internal/models"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Provision(ctx context.Context, user *models.User, starterCredits int) (bool, error)
	UpdateProfile(ctx context.Context, id, email, displayName string) error
}

type UserOptions struct {
	LookupAttempts int
	LookupDelay    time.Duration
	StarterCredits int
}

type UserService struct {
	log   *slog.Logger
	users userStore
	opts  UserOptions
}

// Profile is the account as the rest of the service sees it. Provisioned is
// false when only the auth token vouches for the user and no row exists yet.
type Profile struct {
	User        models.User `json:"user"`
	Provisioned bool        `json:"provisioned"`
}

func NewUserService(log *slog.Logger, users userStore, opts UserOptions) *UserService {
	if log == nil {
		log = slog.Default()
	}
	if opts.LookupAttempts <= 0 {
		opts.LookupAttempts = 1
	}
	return &UserService{log: log, users: users, opts: opts}
}

// Profile resolves the stored profile for an authenticated identity. The row
// may lag behind signup, so the lookup is retried before provisioning it here.
// When everything fails the auth-only identity is returned instead of an error.
func (s *UserService) Profile(ctx context.Context, id auth.Identity) (*Profile, error) {
	user, err := s.lookup(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		s.syncProfile(ctx, user, id)
		return &Profile{User: *user, Provisioned: true}, nil
	}

	candidate := &models.User{ID: id.UserID, Email: id.Email, DisplayName: id.DisplayName}
	created, err := s.users.Provision(ctx, candidate, s.opts.StarterCredits)
	if err != nil {
		s.log.Warn("failed to provision profile, using auth identity", "err", err, "user_id", id.UserID)
		return &Profile{User: *candidate}, nil
	}
	if created {
		s.log.Info("profile provisioned", "user_id", id.UserID, "starter_credits", s.opts.StarterCredits)
	}

	user, err = s.users.FindByID(ctx, id.UserID)
	if err != nil || user == nil {
		s.log.Warn("profile missing after provisioning", "err", err, "user_id", id.UserID)
		return &Profile{User: *candidate}, nil
	}
	return &Profile{User: *user, Provisioned: true}, nil
}

func (s *UserService) lookup(ctx context.Context, userID string) (*models.User, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.LookupAttempts; attempt++ {
		user, err := s.users.FindByID(ctx, userID)
		if err == nil && user != nil {
			return user, nil
		}
		lastErr = err

		if attempt == s.opts.LookupAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.opts.LookupDelay):
		}
	}
	if lastErr != nil {
		s.log.Warn("profile lookup failed", "err", lastErr, "user_id", userID, "attempts", s.opts.LookupAttempts)
	}
	return nil, nil
}

func (s *UserService) syncProfile(ctx context.Context, user *models.User, id auth.Identity) {
	email := user.Email
	if id.Email != "" {
		email = id.Email
	}
	name := user.DisplayName
	if id.DisplayName != "" {
		name = id.DisplayName
	}
	if email == user.Email && name == user.DisplayName {
		return
	}
	if err := s.users.UpdateProfile(ctx, user.ID, email, name); err != nil {
		s.log.Warn("failed to sync profile", "err", fmt.Errorf("user %s: %w", user.ID, err))
		return
	}
	user.Email = email
	user.DisplayName = name
}
