package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/petdance/internal/auth"
	"github.com/digkill/petdance/internal/models"
)

func testIdentity() auth.Identity {
	return auth.Identity{UserID: testUserID, Email: "owner@example.com", DisplayName: "Pet Owner"}
}

func TestProfile_FoundAfterRetries(t *testing.T) {
	users := &fakeUsers{
		user:        &models.User{ID: testUserID, Email: "owner@example.com", DisplayName: "Pet Owner"},
		appearAfter: 2,
	}
	svc := NewUserService(nil, users, UserOptions{LookupAttempts: 3})

	profile, err := svc.Profile(context.Background(), testIdentity())
	require.NoError(t, err)
	assert.True(t, profile.Provisioned)
	assert.Equal(t, 3, users.finds)
	assert.Empty(t, users.provisioned)
	assert.Zero(t, users.updates)
}

func TestProfile_ProvisionsWhenMissing(t *testing.T) {
	users := &fakeUsers{}
	svc := NewUserService(nil, users, UserOptions{LookupAttempts: 2, StarterCredits: 3})

	profile, err := svc.Profile(context.Background(), testIdentity())
	require.NoError(t, err)
	assert.True(t, profile.Provisioned)
	require.Len(t, users.provisioned, 1)
	assert.Equal(t, "owner@example.com", users.provisioned[0].Email)
	assert.Equal(t, testUserID, profile.User.ID)
}

func TestProfile_FallsBackToAuthIdentity(t *testing.T) {
	users := &fakeUsers{findErr: errors.New("db down"), provisionErr: errors.New("db down")}
	svc := NewUserService(nil, users, UserOptions{LookupAttempts: 3})

	profile, err := svc.Profile(context.Background(), testIdentity())
	require.NoError(t, err)
	assert.False(t, profile.Provisioned)
	assert.Equal(t, testUserID, profile.User.ID)
	assert.Equal(t, "Pet Owner", profile.User.DisplayName)
	assert.Equal(t, 3, users.finds)
}

func TestProfile_SyncsChangedEmail(t *testing.T) {
	users := &fakeUsers{user: &models.User{ID: testUserID, Email: "old@example.com"}}
	svc := NewUserService(nil, users, UserOptions{LookupAttempts: 1})

	profile, err := svc.Profile(context.Background(), testIdentity())
	require.NoError(t, err)
	assert.Equal(t, 1, users.updates)
	assert.Equal(t, "owner@example.com", profile.User.Email)
	assert.Equal(t, "Pet Owner", profile.User.DisplayName)
}

func TestProfile_ContextCancelledDuringRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewUserService(nil, &fakeUsers{}, UserOptions{LookupAttempts: 3, LookupDelay: time.Hour})

	_, err := svc.Profile(ctx, testIdentity())
	require.ErrorIs(t, err, context.Canceled)
}
