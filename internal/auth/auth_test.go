package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleNursing, PatientsRead, true},
		{RoleNursing, PatientsWrite, false},
		{RoleReception, PatientsWrite, true},
		{RoleReception, PatientsDelete, false},
		{RoleDoctor, AppointmentsCancel, true},
		{RoleNursing, AppointmentsWrite, false},
		{RoleReception, RecordsRead, false},
		{RoleNursing, RecordsWrite, false},
		{RoleDoctor, BedsRead, false},
		{RoleNursing, BedsWrite, true},
		{RoleReception, BedsWrite, false},
		{RoleDoctor, InvoicesRead, false},
		{RoleAdministrator, UsersWrite, true},
		{RoleReception, UsersRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+" "+string(tt.perm), func(t *testing.T) {
			got, err := Allowed(tt.role, tt.perm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllowedUnknownPermission(t *testing.T) {
	_, err := Allowed(RoleAdministrator, Permission("pharmacy:write"))
	assert.ErrorIs(t, err, ErrUnknownPermission)
}

func TestAdministratorHoldsEveryPermission(t *testing.T) {
	for perm := range permissions {
		ok, err := Allowed(RoleAdministrator, perm)
		require.NoError(t, err)
		assert.True(t, ok, perm)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	u := &User{ID: uuid.New(), Email: "nurse@hospital.test", Role: RoleNursing}

	raw, exp, err := issuer.Issue(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	p, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, RoleNursing, p.Role)
	assert.Equal(t, "nurse@hospital.test", p.Email)
}

func TestTokenRejectsTamperingAndExpiry(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	u := &User{ID: uuid.New(), Email: "doc@hospital.test", Role: RoleDoctor}
	raw, _, err := issuer.Issue(u)
	require.NoError(t, err)

	other := NewTokenIssuer("another-secret", time.Hour)
	_, err = other.Parse(raw)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = issuer.Parse(strings.TrimSuffix(raw, raw[len(raw)-4:]) + "abcd")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.Parse(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

func newMemUsers() *memUsers { return &memUsers{users: map[uuid.UUID]*User{}} }

func (m *memUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) List(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memUsers) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	repo := newMemUsers()
	return NewService(repo, NewTokenIssuer("test-secret", time.Hour), audit.Nop{}, zerolog.Nop()), repo
}

func TestLoginFlow(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, System, CreateUserInput{
		Email: " Reception@Hospital.test ", Password: "correct-horse", Role: RoleReception,
		FirstName: "Ana", LastName: "Lopez",
	})
	require.NoError(t, err)
	assert.Equal(t, "reception@hospital.test", created.Email)
	assert.NotEqual(t, "correct-horse", created.PasswordHash)

	_, err = svc.Login(ctx, "reception@hospital.test", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@hospital.test", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := svc.Login(ctx, "RECEPTION@hospital.test", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, res.User.LastLoginAt)

	p, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, p.UserID)

	me, err := svc.Me(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, RoleReception, me.Role)
	assert.NotNil(t, repo.users[created.ID].LastLoginAt)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, System, CreateUserInput{
		Email: "gone@hospital.test", Password: "correct-horse", Role: RoleDoctor,
		FirstName: "Luis", LastName: "Gil",
	})
	require.NoError(t, err)
	repo.users[u.ID].Active = false

	_, err = svc.Login(ctx, "gone@hospital.test", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := CreateUserInput{Email: "a@b.test", Password: "long-enough", Role: RoleNursing, FirstName: "A", LastName: "B"}

	bad := base
	bad.Role = "janitor"
	_, err := svc.CreateUser(ctx, System, bad)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	bad = base
	bad.Password = "short"
	_, err = svc.CreateUser(ctx, System, bad)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.CreateUser(ctx, System, base)
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, System, base)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAuthenticateReloadsAccount(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, System, CreateUserInput{
		Email: "desk@hospital.test", Password: "correct-horse", Role: RoleReception,
		FirstName: "Eva", LastName: "Ruiz",
	})
	require.NoError(t, err)
	res, err := svc.Login(ctx, "desk@hospital.test", "correct-horse")
	require.NoError(t, err)

	repo.mu.Lock()
	repo.users[u.ID].Role = RoleNursing
	repo.mu.Unlock()

	p, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, RoleNursing, p.Role)

	repo.mu.Lock()
	repo.users[u.ID].Active = false
	repo.mu.Unlock()

	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrAccountDisabled)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	repo.mu.Lock()
	delete(repo.users, u.ID)
	repo.mu.Unlock()

	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}
