package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chiffre-app/chiffre/internal/shared"
)

type memoryUserRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]User)}
}

func (r *memoryUserRepo) Insert(ctx context.Context, email, passwordHash string) (User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return User{}, shared.ErrDuplicate
		}
	}
	r.nextID++
	u := User{ID: r.nextID, Email: email, PasswordHash: passwordHash}
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	service := NewService(newMemoryUserRepo())
	ctx := context.Background()

	user, err := service.Register(ctx, "Marie@Example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "marie@example.com", user.Email)
	require.NotEqual(t, "correct horse", user.PasswordHash)

	got, err := service.Authenticate(ctx, "marie@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	service := NewService(newMemoryUserRepo())
	ctx := context.Background()

	_, err := service.Register(ctx, "marie@example.com", "correct horse")
	require.NoError(t, err)

	_, err = service.Authenticate(ctx, "marie@example.com", "battery staple")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = service.Authenticate(ctx, "ghost@example.com", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	service := NewService(newMemoryUserRepo())
	ctx := context.Background()

	_, err := service.Register(ctx, "  ", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = service.Register(ctx, "marie@example.com", "short")
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service := NewService(newMemoryUserRepo())
	ctx := context.Background()

	_, err := service.Register(ctx, "marie@example.com", "correct horse")
	require.NoError(t, err)

	_, err = service.Register(ctx, "MARIE@example.com", "correct horse")
	require.ErrorIs(t, err, shared.ErrDuplicate)
}
