package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/culinaryhub/culinary-school-api/internal/models"
	appErrors "github.com/culinaryhub/culinary-school-api/pkg/errors"
)

type mockUserRepo struct {
	users        map[string]*models.User
	tokens       map[string]*models.RefreshToken
	saved        []*models.RefreshToken
	revoked      []string
	lastLoginSet bool
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	m.lastLoginSet = true
	return nil
}

func (m *mockUserRepo) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]*models.RefreshToken)
	}
	m.tokens[token.Token] = token
	m.saved = append(m.saved, token)
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	m.revoked = append(m.revoked, id)
	for _, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockUserRepo) RevokeUserTokens(ctx context.Context, userID int64) error {
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

type mockSignupRepo struct {
	createErr error
	user      *models.User
	student   *models.Student
}

func (m *mockSignupRepo) CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = 10
	student.ID = 5
	student.UserID = user.ID
	m.user = user
	m.student = student
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "culinary-school-api",
	}
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           10,
		Email:        "student@example.com",
		PasswordHash: string(hash),
		FullName:     "Rahim Uddin",
		Role:         models.RoleStudent,
		Active:       true,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{"student@example.com": activeUser(t, "secret123")}}
	svc := NewAuthService(users, &mockSignupRepo{}, &mockAuditWriter{}, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(10), resp.User.ID)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.True(t, users.lastLoginSet)
	require.Len(t, users.saved, 1)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(10), claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{"student@example.com": activeUser(t, "secret123")}}
	svc := NewAuthService(users, &mockSignupRepo{}, &mockAuditWriter{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "wrong"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	user := activeUser(t, "secret123")
	user.Active = false
	users := &mockUserRepo{users: map[string]*models.User{"student@example.com": user}}
	svc := NewAuthService(users, &mockSignupRepo{}, &mockAuditWriter{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceSignup(t *testing.T) {
	repo := &mockSignupRepo{}
	svc := NewAuthService(&mockUserRepo{}, repo, &mockAuditWriter{}, validator.New(), zap.NewNop(), testAuthConfig())

	student, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "Rahim Uddin",
		Email:    "student@example.com",
		Password: "secret123",
		Phone:    "01712345678",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), student.ID)
	require.NotNil(t, repo.user)
	assert.Equal(t, models.RoleStudent, repo.user.Role)
	assert.True(t, repo.user.Active)
	assert.NotEqual(t, "secret123", repo.user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.user.PasswordHash), []byte("secret123")))
}

func TestAuthServiceSignupValidation(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSignupRepo{}, &mockAuditWriter{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     "Rahim Uddin",
		Email:    "not-an-email",
		Password: "short",
		Phone:    "01712345678",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenRotation(t *testing.T) {
	user := activeUser(t, "secret123")
	users := &mockUserRepo{
		users: map[string]*models.User{"student@example.com": user},
		tokens: map[string]*models.RefreshToken{
			"old-token": {ID: "rt-1", UserID: 10, Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := NewAuthService(users, &mockSignupRepo{}, &mockAuditWriter{}, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, users.revoked, "rt-1")

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	users := &mockUserRepo{
		users: map[string]*models.User{"student@example.com": activeUser(t, "secret123")},
		tokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt-2", UserID: 10, Token: "stale", ExpiresAt: time.Now().Add(-time.Hour)},
		},
	}
	svc := NewAuthService(users, &mockSignupRepo{}, &mockAuditWriter{}, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceLogout(t *testing.T) {
	users := &mockUserRepo{
		tokens: map[string]*models.RefreshToken{
			"tok": {ID: "rt-3", UserID: 10, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := NewAuthService(users, &mockSignupRepo{}, &mockAuditWriter{}, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), "tok", 99)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	require.NoError(t, svc.Logout(context.Background(), "tok", 10))
	assert.Contains(t, users.revoked, "rt-3")
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{"student@example.com": activeUser(t, "secret123")}}
	svc := NewAuthService(users, &mockSignupRepo{}, &mockAuditWriter{}, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	require.NoError(t, err)

	other := NewAuthService(users, &mockSignupRepo{}, &mockAuditWriter{}, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: 15 * time.Minute,
	})
	_, err = other.ValidateToken(resp.AccessToken)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
