package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgauth "github.com/jkariuki/nyumbani-backend/pkg/auth"
	"github.com/jkariuki/nyumbani-backend/pkg/auth/session"
	"github.com/jkariuki/nyumbani-backend/pkg/config"
	"github.com/jkariuki/nyumbani-backend/pkg/db/models"
	"github.com/jkariuki/nyumbani-backend/pkg/enums"
	pkgerrors "github.com/jkariuki/nyumbani-backend/pkg/errors"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
	"github.com/jkariuki/nyumbani-backend/pkg/security"
)

type stubUserRepo struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	createErr    error
	created      []*models.User
	lastLoginIDs []uuid.UUID
	updated      []*models.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		usersByEmail: map[string]*models.User{},
		usersByID:    map[uuid.UUID]*models.User{},
	}
}

func (s *stubUserRepo) add(user *models.User) {
	s.usersByEmail[user.Email] = user
	s.usersByID[user.ID] = user
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.created = append(s.created, user)
	s.add(user)
	return nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.usersByEmail[email], nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.usersByID[id], nil
}

func (s *stubUserRepo) Update(ctx context.Context, user *models.User) error {
	s.updated = append(s.updated, user)
	s.add(user)
	return nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.lastLoginIDs = append(s.lastLoginIDs, id)
	return nil
}

type stubSessions struct {
	generated []string
	rotateErr error
	revoked   []string
	nextID    string
}

func (s *stubSessions) Generate(ctx context.Context, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	id := s.nextID
	if id == "" {
		id = session.NewAccessID()
	}
	return id, "refresh-" + id, nil
}

func (s *stubSessions) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

type authFixture struct {
	service  *Service
	repo     *stubUserRepo
	sessions *stubSessions
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	repo := newStubUserRepo()
	sessions := &stubSessions{}
	jwtCfg := config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "nyumbani-test",
		ExpirationMinutes: 15,
	}
	pwCfg := config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}

	service, err := NewService(ServiceParams{
		Repo:     repo,
		Sessions: sessions,
		JWT:      jwtCfg,
		Password: pwCfg,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	service.now = func() time.Time {
		return time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)
	}

	return &authFixture{
		service:  service,
		repo:     repo,
		sessions: sessions,
		jwtCfg:   jwtCfg,
		pwCfg:    pwCfg,
	}
}

func (f *authFixture) seedUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, f.pwCfg)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Jane",
		LastName:     "Wanjiku",
		Role:         enums.UserRoleLandlord,
		IsActive:     true,
	}
	f.repo.add(user)
	return user
}

func TestRegisterCreatesLandlordWithTokens(t *testing.T) {
	f := newAuthFixture(t)

	phone := "0712345678"
	result, err := f.service.Register(context.Background(), RegisterInput{
		Email:     "Jane@Example.COM",
		Password:  "correct-horse",
		FirstName: "Jane",
		LastName:  "Wanjiku",
		Phone:     &phone,
	})
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", result.User.Email)
	assert.Equal(t, enums.UserRoleLandlord, result.User.Role)
	require.NotNil(t, result.User.Phone)
	assert.Equal(t, "+254712345678", *result.User.Phone)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
	require.Len(t, f.sessions.generated, 1)

	claims, err := pkgauth.ParseAccessToken(f.jwtCfg, result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, f.sessions.generated[0], claims.ID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@example.com", "correct-horse")

	_, err := f.service.Register(context.Background(), RegisterInput{
		Email:     "jane@example.com",
		Password:  "another-pass",
		FirstName: "Jane",
		LastName:  "Wanjiku",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Register(context.Background(), RegisterInput{
		Email:     "jane@example.com",
		Password:  "short",
		FirstName: "Jane",
		LastName:  "Wanjiku",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Empty(t, f.repo.created)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Register(context.Background(), RegisterInput{
		Email:     "jane@example.com",
		Password:  "correct-horse",
		FirstName: "Jane",
		LastName:  "Wanjiku",
		Role:      "admin",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestLoginIssuesTokensAndStampsLastLogin(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "jane@example.com", "correct-horse")

	result, err := f.service.Login(context.Background(), LoginInput{
		Email:    "jane@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.Equal(t, []uuid.UUID{user.ID}, f.repo.lastLoginIDs)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@example.com", "correct-horse")

	_, err := f.service.Login(context.Background(), LoginInput{
		Email:    "jane@example.com",
		Password: "wrong-horse",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
	assert.Empty(t, f.sessions.generated)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "jane@example.com", "correct-horse")
	user.IsActive = false

	_, err := f.service.Login(context.Background(), LoginInput{
		Email:    "jane@example.com",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestRefreshRotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "jane@example.com", "correct-horse")

	login, err := f.service.Login(context.Background(), LoginInput{
		Email:    "jane@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	f.sessions.nextID = "rotated-access-id"
	pair, err := f.service.Refresh(context.Background(), login.Tokens.AccessToken, login.Tokens.RefreshToken)
	require.NoError(t, err)

	claims, err := pkgauth.ParseAccessToken(f.jwtCfg, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "rotated-access-id", claims.ID)
	assert.Equal(t, "refresh-rotated-access-id", pair.RefreshToken)
}

func TestRefreshRejectsInvalidRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@example.com", "correct-horse")

	login, err := f.service.Login(context.Background(), LoginInput{
		Email:    "jane@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	f.sessions.rotateErr = session.ErrInvalidRefreshToken
	_, err = f.service.Refresh(context.Background(), login.Tokens.AccessToken, "forged")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestRefreshRejectsGarbageAccessToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Refresh(context.Background(), "not-a-jwt", "whatever")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAuthFixture(t)

	err := f.service.Logout(context.Background(), "access-id-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"access-id-1"}, f.sessions.revoked)
}

func TestUpdateProfileChangesNamesAndPhone(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "jane@example.com", "correct-horse")

	firstName := "Janet"
	phone := "0722000111"
	updated, err := f.service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{
		FirstName: &firstName,
		Phone:     &phone,
	})
	require.NoError(t, err)

	assert.Equal(t, "Janet", updated.FirstName)
	assert.Equal(t, "Wanjiku", updated.LastName)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, "+254722000111", *updated.Phone)
	require.Len(t, f.repo.updated, 1)
}

func TestUpdateProfileRejectsEmptyName(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "jane@example.com", "correct-horse")

	empty := "   "
	_, err := f.service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{
		FirstName: &empty,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestProfileUnknownUserNotFound(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Profile(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
