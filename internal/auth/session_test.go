// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/solverspace/solverspace/internal/auth"
	"github.com/solverspace/solverspace/internal/profile"
	"github.com/solverspace/solverspace/internal/validate"
)

// mockBackend is a mock for auth.Backend.
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *mockBackend) SignUp(ctx context.Context, email, password string) (*auth.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *mockBackend) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockBackend) CurrentSession(ctx context.Context) (*auth.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *mockBackend) VerifyCode(ctx context.Context, email, code string) (*auth.Identity, error) {
	args := m.Called(ctx, email, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *mockBackend) ResendCode(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// mockProfileStore is a mock for profile.Store.
type mockProfileStore struct {
	mock.Mock
}

func (m *mockProfileStore) GetByID(ctx context.Context, id string) (*profile.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *mockProfileStore) GetByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *mockProfileStore) Insert(ctx context.Context, p *profile.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func newTestSession(t *testing.T) (*auth.Session, *mockBackend, *mockProfileStore) {
	t.Helper()
	backend := new(mockBackend)
	profiles := new(mockProfileStore)
	session, err := auth.NewSession(backend, profiles)
	require.NoError(t, err)
	return session, backend, profiles
}

func TestNewSession_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		backend     auth.Backend
		profiles    profile.Store
		expectError string
	}{
		{"nil backend", nil, new(mockProfileStore), "auth backend is required"},
		{"nil profile store", new(mockBackend), nil, "profile store is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := auth.NewSession(tt.backend, tt.profiles)
			require.Error(t, err)
			assert.Nil(t, session)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestSession_Login(t *testing.T) {
	ctx := context.Background()
	ident := &auth.Identity{ID: "id-1", Email: "user@example.com", CreatedAt: time.Now()}

	t.Run("success with existing profile", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		backend.On("SignIn", ctx, "user@example.com", "Abc123!@").Return(ident, nil)
		profiles.On("GetByID", ctx, "id-1").Return(&profile.Profile{ID: "id-1", Username: "existing_name"}, nil)

		redirect := session.Login(ctx, "user@example.com", "Abc123!@")

		assert.Equal(t, auth.PathHome, redirect)
		user := session.User()
		require.NotNil(t, user)
		assert.Equal(t, "existing_name", user.Username)
		assert.Equal(t, "user@example.com", user.Email)
		assert.False(t, session.Processing())
		assert.Empty(t, session.Error())
		backend.AssertExpectations(t)
		profiles.AssertExpectations(t)
	})

	t.Run("missing profile gets fallback from email local-part", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		backend.On("SignIn", ctx, "user@example.com", "Abc123!@").Return(ident, nil)
		profiles.On("GetByID", ctx, "id-1").Return(nil, profile.ErrNotFound)
		profiles.On("Insert", ctx, mock.MatchedBy(func(p *profile.Profile) bool {
			return p.ID == "id-1" && p.Username == "user"
		})).Return(nil)

		redirect := session.Login(ctx, "user@example.com", "Abc123!@")

		assert.Equal(t, auth.PathHome, redirect)
		user := session.User()
		require.NotNil(t, user)
		assert.Equal(t, "user", user.Username)
		profiles.AssertExpectations(t)
	})

	t.Run("fallback profile insert failure does not fail login", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		backend.On("SignIn", ctx, "user@example.com", "Abc123!@").Return(ident, nil)
		profiles.On("GetByID", ctx, "id-1").Return(nil, profile.ErrNotFound)
		profiles.On("Insert", ctx, mock.AnythingOfType("*profile.Profile")).Return(errors.New("db down"))

		redirect := session.Login(ctx, "user@example.com", "Abc123!@")

		assert.Equal(t, auth.PathHome, redirect)
		assert.NotNil(t, session.User())
		assert.Empty(t, session.Error())
	})

	t.Run("wrong credentials", func(t *testing.T) {
		session, backend, _ := newTestSession(t)
		backend.On("SignIn", ctx, "user@example.com", "wrong").
			Return(nil, &auth.BackendError{Kind: auth.KindInvalidCredentials, Message: "invalid login"})

		redirect := session.Login(ctx, "user@example.com", "wrong")

		assert.Empty(t, redirect)
		assert.Nil(t, session.User())
		assert.Equal(t, auth.MsgInvalidLogin, session.Error())
		assert.False(t, session.Processing())
	})

	t.Run("transport failure maps to the same message", func(t *testing.T) {
		session, backend, _ := newTestSession(t)
		backend.On("SignIn", ctx, "user@example.com", "Abc123!@").Return(nil, errors.New("connection refused"))

		redirect := session.Login(ctx, "user@example.com", "Abc123!@")

		assert.Empty(t, redirect)
		assert.Nil(t, session.User())
		assert.Equal(t, auth.MsgInvalidLogin, session.Error())
		assert.False(t, session.Processing())
	})
}

func TestSession_Signup(t *testing.T) {
	ctx := context.Background()
	ident := &auth.Identity{ID: "id-2", Email: "new@example.com", CreatedAt: time.Now()}

	t.Run("invalid username rejected before any call", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)

		redirect := session.Signup(ctx, "new@example.com", "Abc123!@", "123user")

		assert.Empty(t, redirect)
		assert.Equal(t, validate.ErrUsernameFormat, session.Error())
		// No expectations set: any backend or store call would fail the test.
		backend.AssertExpectations(t)
		profiles.AssertExpectations(t)
	})

	t.Run("taken username short-circuits before identity creation", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		profiles.On("GetByUsername", ctx, "taken_name").
			Return(&profile.Profile{ID: "other", Username: "taken_name"}, nil)

		redirect := session.Signup(ctx, "new@example.com", "Abc123!@", "taken_name")

		assert.Empty(t, redirect)
		assert.Equal(t, auth.MsgUsernameTaken, session.Error())
		backend.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("success signs in immediately", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		profiles.On("GetByUsername", ctx, "new_user").Return(nil, profile.ErrNotFound)
		backend.On("SignUp", ctx, "new@example.com", "Abc123!@").Return(ident, nil)
		profiles.On("Insert", ctx, mock.MatchedBy(func(p *profile.Profile) bool {
			return p.ID == "id-2" && p.Username == "new_user"
		})).Return(nil)
		backend.On("SignIn", ctx, "new@example.com", "Abc123!@").Return(ident, nil)

		redirect := session.Signup(ctx, "new@example.com", "Abc123!@", "new_user")

		assert.Equal(t, auth.PathHome, redirect)
		user := session.User()
		require.NotNil(t, user)
		assert.Equal(t, "new_user", user.Username)
		assert.False(t, session.Processing())
		backend.AssertExpectations(t)
		profiles.AssertExpectations(t)
	})

	t.Run("weak password becomes bullet list", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		profiles.On("GetByUsername", ctx, "new_user").Return(nil, profile.ErrNotFound)
		backend.On("SignUp", ctx, "new@example.com", "weak").
			Return(nil, &auth.BackendError{
				Kind:    auth.KindWeakPassword,
				Message: "Password should be at least 8 characters. Password should contain a number.",
			})

		redirect := session.Signup(ctx, "new@example.com", "weak", "new_user")

		assert.Empty(t, redirect)
		assert.Equal(t,
			"• Password should be at least 8 characters\n• Password should contain a number",
			session.Error())
	})

	t.Run("duplicate email redirects to login", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		profiles.On("GetByUsername", ctx, "new_user").Return(nil, profile.ErrNotFound)
		backend.On("SignUp", ctx, "dup@example.com", "Abc123!@").
			Return(nil, &auth.BackendError{Kind: auth.KindEmailTaken, Message: "already registered"})

		redirect := session.Signup(ctx, "dup@example.com", "Abc123!@", "new_user")

		assert.Equal(t, auth.PathLogin, redirect)
		assert.Equal(t, auth.MsgEmailRegistered, session.Error())
	})

	t.Run("malformed email", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		profiles.On("GetByUsername", ctx, "new_user").Return(nil, profile.ErrNotFound)
		backend.On("SignUp", ctx, "not-an-email", "Abc123!@").
			Return(nil, &auth.BackendError{Kind: auth.KindInvalidEmail, Message: "invalid format"})

		redirect := session.Signup(ctx, "not-an-email", "Abc123!@", "new_user")

		assert.Empty(t, redirect)
		assert.Equal(t, auth.MsgInvalidEmail, session.Error())
	})

	t.Run("unexpected failure degrades to generic message", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		profiles.On("GetByUsername", ctx, "new_user").Return(nil, profile.ErrNotFound)
		backend.On("SignUp", ctx, "new@example.com", "Abc123!@").Return(nil, errors.New("boom"))

		redirect := session.Signup(ctx, "new@example.com", "Abc123!@", "new_user")

		assert.Empty(t, redirect)
		assert.Equal(t, auth.MsgGenericError, session.Error())
	})

	t.Run("failed immediate sign-in is a soft outcome", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		profiles.On("GetByUsername", ctx, "new_user").Return(nil, profile.ErrNotFound)
		backend.On("SignUp", ctx, "new@example.com", "Abc123!@").Return(ident, nil)
		profiles.On("Insert", ctx, mock.AnythingOfType("*profile.Profile")).Return(nil)
		backend.On("SignIn", ctx, "new@example.com", "Abc123!@").
			Return(nil, errors.New("email confirmation required"))

		redirect := session.Signup(ctx, "new@example.com", "Abc123!@", "new_user")

		assert.Equal(t, auth.PathLogin, redirect)
		assert.Empty(t, session.Error())
		assert.Equal(t, auth.MsgAccountCreated, session.SuccessMessage())
		assert.Nil(t, session.User())
	})

	t.Run("profile insert failure is not fatal", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		profiles.On("GetByUsername", ctx, "new_user").Return(nil, profile.ErrNotFound)
		backend.On("SignUp", ctx, "new@example.com", "Abc123!@").Return(ident, nil)
		profiles.On("Insert", ctx, mock.AnythingOfType("*profile.Profile")).Return(errors.New("db down"))
		backend.On("SignIn", ctx, "new@example.com", "Abc123!@").Return(ident, nil)

		redirect := session.Signup(ctx, "new@example.com", "Abc123!@", "new_user")

		assert.Equal(t, auth.PathHome, redirect)
		assert.NotNil(t, session.User())
	})
}

func TestSession_VerifyOtp(t *testing.T) {
	ctx := context.Background()
	ident := &auth.Identity{ID: "id-3", Email: "pending@example.com", CreatedAt: time.Now()}

	t.Run("requires pending identity", func(t *testing.T) {
		session, _, _ := newTestSession(t)

		redirect := session.VerifyOtp(ctx, "123456")

		assert.Empty(t, redirect)
		assert.Equal(t, auth.MsgVerifyExpired, session.Error())
	})

	t.Run("success creates profile and clears pending identity", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		session.BeginVerification("pending@example.com", "pending_user")
		backend.On("VerifyCode", ctx, "pending@example.com", "123456").Return(ident, nil)
		profiles.On("Insert", ctx, mock.MatchedBy(func(p *profile.Profile) bool {
			return p.ID == "id-3" && p.Username == "pending_user"
		})).Return(nil)

		redirect := session.VerifyOtp(ctx, "123456")

		assert.Equal(t, auth.PathHome, redirect)
		user := session.User()
		require.NotNil(t, user)
		assert.Equal(t, "pending_user", user.Username)

		// Pending identity is consumed: a second verify needs a fresh start.
		redirect = session.VerifyOtp(ctx, "123456")
		assert.Empty(t, redirect)
		assert.Equal(t, auth.MsgVerifyExpired, session.Error())
	})

	t.Run("invalid code", func(t *testing.T) {
		session, backend, _ := newTestSession(t)
		session.BeginVerification("pending@example.com", "pending_user")
		backend.On("VerifyCode", ctx, "pending@example.com", "000000").
			Return(nil, &auth.BackendError{Kind: auth.KindCodeInvalid, Message: "expired"})

		redirect := session.VerifyOtp(ctx, "000000")

		assert.Empty(t, redirect)
		assert.Equal(t, auth.MsgCodeInvalid, session.Error())
		assert.Nil(t, session.User())
	})
}

func TestSession_ResendOtp(t *testing.T) {
	ctx := context.Background()

	t.Run("requires pending email", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		session.ResendOtp(ctx)
		assert.Equal(t, auth.MsgVerifyExpired, session.Error())
	})

	t.Run("success reports a message", func(t *testing.T) {
		session, backend, _ := newTestSession(t)
		session.BeginVerification("pending@example.com", "pending_user")
		backend.On("ResendCode", ctx, "pending@example.com").Return(nil)

		session.ResendOtp(ctx)

		assert.Empty(t, session.Error())
		assert.Equal(t, auth.MsgCodeResent, session.SuccessMessage())
	})

	t.Run("failure is reported but pending identity survives", func(t *testing.T) {
		session, backend, _ := newTestSession(t)
		session.BeginVerification("pending@example.com", "pending_user")
		backend.On("ResendCode", ctx, "pending@example.com").Return(errors.New("rate limited")).Once()
		backend.On("ResendCode", ctx, "pending@example.com").Return(nil)

		session.ResendOtp(ctx)
		assert.Equal(t, auth.MsgResendFailed, session.Error())

		session.ResendOtp(ctx)
		assert.Equal(t, auth.MsgCodeResent, session.SuccessMessage())
	})
}

func TestSession_Logout(t *testing.T) {
	ctx := context.Background()
	ident := &auth.Identity{ID: "id-1", Email: "user@example.com", CreatedAt: time.Now()}

	login := func(t *testing.T) (*auth.Session, *mockBackend) {
		t.Helper()
		session, backend, profiles := newTestSession(t)
		backend.On("SignIn", ctx, "user@example.com", "Abc123!@").Return(ident, nil)
		profiles.On("GetByID", ctx, "id-1").Return(&profile.Profile{ID: "id-1", Username: "someone"}, nil)
		session.Login(ctx, "user@example.com", "Abc123!@")
		require.NotNil(t, session.User())
		return session, backend
	}

	t.Run("clears user", func(t *testing.T) {
		session, backend := login(t)
		backend.On("SignOut", ctx).Return(nil)

		redirect := session.Logout(ctx)

		assert.Equal(t, auth.PathLogin, redirect)
		assert.Nil(t, session.User())
		assert.Empty(t, session.Error())
	})

	t.Run("clears user even when sign-out fails", func(t *testing.T) {
		session, backend := login(t)
		backend.On("SignOut", ctx).Return(errors.New("network error"))

		redirect := session.Logout(ctx)

		assert.Equal(t, auth.PathLogin, redirect)
		assert.Nil(t, session.User())
		assert.Equal(t, auth.MsgGenericError, session.Error())
	})
}

func TestSession_Restore(t *testing.T) {
	ctx := context.Background()
	ident := &auth.Identity{ID: "id-1", Email: "user@example.com", CreatedAt: time.Now()}

	t.Run("rebuilds user from existing backend session", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		backend.On("CurrentSession", ctx).Return(ident, nil)
		profiles.On("GetByID", ctx, "id-1").Return(&profile.Profile{ID: "id-1", Username: "restored"}, nil)

		session.Restore(ctx)

		user := session.User()
		require.NotNil(t, user)
		assert.Equal(t, "restored", user.Username)
	})

	t.Run("no backend session leaves user absent", func(t *testing.T) {
		session, backend, _ := newTestSession(t)
		backend.On("CurrentSession", ctx).Return(nil, auth.ErrNoSession)

		session.Restore(ctx)

		assert.Nil(t, session.User())
		assert.Empty(t, session.Error())
	})

	t.Run("backend failure never propagates", func(t *testing.T) {
		session, backend, _ := newTestSession(t)
		backend.On("CurrentSession", ctx).Return(nil, errors.New("timeout"))

		session.Restore(ctx)

		assert.Nil(t, session.User())
		assert.Empty(t, session.Error())
	})

	t.Run("profile lookup failure degrades to empty username", func(t *testing.T) {
		session, backend, profiles := newTestSession(t)
		backend.On("CurrentSession", ctx).Return(ident, nil)
		profiles.On("GetByID", ctx, "id-1").Return(nil, errors.New("db down"))

		session.Restore(ctx)

		user := session.User()
		require.NotNil(t, user)
		assert.Empty(t, user.Username)
	})
}

func TestSession_FieldState(t *testing.T) {
	ctx := context.Background()

	t.Run("set field marks touched and clears error", func(t *testing.T) {
		session, backend, _ := newTestSession(t)
		backend.On("SignIn", ctx, "", "").Return(nil, errors.New("empty"))
		session.Login(ctx, "", "")
		require.NotEmpty(t, session.Error())

		session.SetField(auth.FieldEmail, "user@example.com")

		assert.Empty(t, session.Error())
		value, touched := session.FieldValue(auth.FieldEmail)
		assert.Equal(t, "user@example.com", value)
		assert.True(t, touched)
	})

	t.Run("unknown field is ignored", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		session.SetField(auth.Field("captcha"), "x")
		value, touched := session.FieldValue(auth.Field("captcha"))
		assert.Empty(t, value)
		assert.False(t, touched)
	})
}

func TestSession_FormState(t *testing.T) {
	t.Run("untouched fields get the permissive default", func(t *testing.T) {
		session, _, _ := newTestSession(t)

		fs := session.FormState()

		assert.True(t, fs.Username.Valid)
		assert.True(t, fs.Email.Valid)
		assert.True(t, fs.Password.Valid)
		assert.False(t, fs.Password.ShowRequirements)
	})

	t.Run("touched invalid username surfaces the message", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		session.SetField(auth.FieldUsername, "123user")

		fs := session.FormState()

		assert.False(t, fs.Username.Valid)
		assert.Equal(t, validate.ErrUsernameFormat, fs.Username.Message)
	})

	t.Run("touched password shows requirements", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		session.SetField(auth.FieldPassword, "abc")

		fs := session.FormState()

		assert.False(t, fs.Password.Valid)
		assert.True(t, fs.Password.ShowRequirements)
		require.Len(t, fs.Password.Checks, 5)
		assert.True(t, fs.Password.Checks[0].Passed)  // lowercase
		assert.False(t, fs.Password.Checks[4].Passed) // length
	})

	t.Run("repeated computation is stable through the cache", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		session.SetField(auth.FieldUsername, "cached_name")

		first := session.FormState()
		second := session.FormState()

		assert.Equal(t, first.Username, second.Username)
	})

	t.Run("snapshot bundles user state and form state", func(t *testing.T) {
		session, _, _ := newTestSession(t)
		session.SetField(auth.FieldEmail, "not-an-email")

		snap := session.State()

		assert.Nil(t, snap.User)
		assert.False(t, snap.Processing)
		assert.False(t, snap.Form.Email.Valid)
	})
}
