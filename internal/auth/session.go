// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/solverspace/solverspace/internal/observability"
	"github.com/solverspace/solverspace/internal/profile"
	"github.com/solverspace/solverspace/internal/validate"
	"github.com/solverspace/solverspace/pkg/errutil"
)

// Field identifies one form field on a Session.
type Field string

// Form fields tracked by a Session.
const (
	FieldEmail    Field = "email"
	FieldUsername Field = "username"
	FieldPassword Field = "password"
)

// Session is the per-client authentication state machine. One instance
// exists per client connection; the UI reads its state after each
// operation and honors the advisory processing flag (e.g. by disabling
// submit). Overlapping operations on the same session are not queued or
// rejected here — that is the caller's responsibility.
//
// The internal mutex guards memory safety only. It is released around
// backend calls so state reads stay responsive while an operation is in
// flight.
type Session struct {
	backend  Backend
	profiles profile.Store
	logger   *slog.Logger

	mu sync.Mutex

	user       *User
	processing bool
	errMsg     string
	successMsg string

	// Pending email-verification identity. Set by BeginVerification,
	// consumed by VerifyOtp/ResendOtp.
	tempEmail    string
	tempUsername string

	email    string
	username string
	password string

	emailTouched    bool
	usernameTouched bool
	passwordTouched bool

	usernameCache *validationCache[validate.State]
	passwordCache *validationCache[validate.PasswordState]
}

// NewSession creates a Session with a no-op logger.
// Returns an error if any required dependency is nil.
func NewSession(backend Backend, profiles profile.Store) (*Session, error) {
	return NewSessionWithLogger(backend, profiles, slog.New(slog.DiscardHandler))
}

// NewSessionWithLogger creates a Session with the provided logger.
func NewSessionWithLogger(backend Backend, profiles profile.Store, logger *slog.Logger) (*Session, error) {
	if backend == nil {
		return nil, oops.Errorf("auth backend is required")
	}
	if profiles == nil {
		return nil, oops.Errorf("profile store is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Session{
		backend:       backend,
		profiles:      profiles,
		logger:        logger,
		usernameCache: newValidationCache[validate.State](validationCacheCapacity),
		passwordCache: newValidationCache[validate.PasswordState](validationCacheCapacity),
	}, nil
}

// Snapshot is a consistent read of everything the UI renders.
type Snapshot struct {
	User       *User              `json:"user,omitempty"`
	Processing bool               `json:"processing"`
	Error      string             `json:"error,omitempty"`
	Success    string             `json:"success,omitempty"`
	Form       validate.FormState `json:"form"`
}

// State returns a snapshot of the session for rendering.
func (s *Session) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user *User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return Snapshot{
		User:       user,
		Processing: s.processing,
		Error:      s.errMsg,
		Success:    s.successMsg,
		Form:       s.formStateLocked(),
	}
}

// User returns a copy of the authenticated user, or nil.
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Processing reports whether an auth operation is in flight.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Error returns the current user-facing error message, if any.
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// SuccessMessage returns the current informational message, if any.
func (s *Session) SuccessMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successMsg
}

// SetField updates a raw field value, marks the field touched, and clears
// any existing error. No backend call is made. Unknown fields are ignored.
func (s *Session) SetField(field Field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch field {
	case FieldEmail:
		s.email = value
		s.emailTouched = true
	case FieldUsername:
		s.username = value
		s.usernameTouched = true
	case FieldPassword:
		s.password = value
		s.passwordTouched = true
	default:
		return
	}
	s.errMsg = ""
}

// FieldValue returns the raw value and touched flag for a field.
func (s *Session) FieldValue(field Field) (value string, touched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch field {
	case FieldEmail:
		return s.email, s.emailTouched
	case FieldUsername:
		return s.username, s.usernameTouched
	case FieldPassword:
		return s.password, s.passwordTouched
	}
	return "", false
}

// FormState computes the validation snapshot for the current field values.
// Untouched fields get the permissive default regardless of cache contents;
// touched fields are served from the per-field cache when possible.
func (s *Session) FormState() validate.FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formStateLocked()
}

func (s *Session) formStateLocked() validate.FormState {
	fs := validate.FormState{
		Username: validate.ValidState(),
		Password: validate.ValidPasswordState(),
		Email:    validate.ValidState(),
	}
	if s.usernameTouched {
		fs.Username = s.usernameStateLocked(s.username)
	}
	if s.passwordTouched {
		fs.Password = s.passwordStateLocked(s.password)
	}
	if s.emailTouched {
		fs.Email = validate.Email(s.email)
	}
	return fs
}

func (s *Session) usernameStateLocked(raw string) validate.State {
	if len(raw) <= minCacheableUsernameLen {
		return validate.UsernameState(raw)
	}
	if state, ok := s.usernameCache.get(raw); ok {
		observability.RecordCacheLookup("username", "hit")
		return state
	}
	observability.RecordCacheLookup("username", "miss")
	state := validate.UsernameState(raw)
	s.usernameCache.put(raw, state)
	return state
}

func (s *Session) passwordStateLocked(raw string) validate.PasswordState {
	if len(raw) <= minCacheablePasswordLen {
		return validate.PasswordStateFor(raw)
	}
	if state, ok := s.passwordCache.get(raw); ok {
		observability.RecordCacheLookup("password", "hit")
		return state
	}
	observability.RecordCacheLookup("password", "miss")
	state := validate.PasswordStateFor(raw)
	s.passwordCache.put(raw, state)
	return state
}

// Login authenticates with the backend and, on success, loads or lazily
// creates the user's profile. Returns the navigation intent ("" when the
// caller should stay put). Any failure — bad credentials or transport —
// surfaces as the same stable message and leaves the user absent.
func (s *Session) Login(ctx context.Context, email, password string) (redirect string) {
	s.begin()
	defer s.end()

	ident, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		errutil.LogWarn(s.logger, "login failed", err)
		s.fail(MsgInvalidLogin)
		observability.RecordAuthOperation("login", "failure")
		return ""
	}

	user := &User{
		ID:        ident.ID,
		Email:     ident.Email,
		CreatedAt: ident.CreatedAt,
		LastLogin: ident.LastLogin,
	}
	user.Username = s.resolveUsername(ctx, ident.ID, ident.Email)

	s.setUser(user)
	observability.RecordAuthOperation("login", "success")
	return PathHome
}

// resolveUsername fetches the profile username, lazily creating the
// profile with a sanitized fallback derived from the email local-part when
// it is missing. Profile failures degrade: they are logged and a fallback
// value is used, never aborting the parent operation.
func (s *Session) resolveUsername(ctx context.Context, id, email string) string {
	prof, err := s.profiles.GetByID(ctx, id)
	if err == nil {
		return prof.Username
	}

	fallback := validate.SanitizeUsername(emailLocalPart(email))
	if errors.Is(err, profile.ErrNotFound) {
		if insErr := s.profiles.Insert(ctx, &profile.Profile{ID: id, Username: fallback}); insErr != nil {
			errutil.LogWarn(s.logger, "fallback profile insert failed", insErr)
		}
	} else {
		errutil.LogWarn(s.logger, "profile lookup failed", err)
	}
	return fallback
}

// Signup validates locally, checks username availability, creates the
// backend identity, best-effort creates the profile, and signs the new
// account in. Local validation rejects before any network call;
// availability is checked before identity creation.
func (s *Session) Signup(ctx context.Context, email, password, username string) (redirect string) {
	s.begin()
	defer s.end()

	if ok, msg := validate.Username(username); !ok {
		s.fail(msg)
		observability.RecordAuthOperation("signup", "failure")
		return ""
	}

	switch _, err := s.profiles.GetByUsername(ctx, username); {
	case err == nil:
		s.fail(MsgUsernameTaken)
		observability.RecordAuthOperation("signup", "failure")
		return ""
	case !errors.Is(err, profile.ErrNotFound):
		errutil.LogError(s.logger, "username availability check failed", err)
		s.fail(MsgGenericError)
		observability.RecordAuthOperation("signup", "failure")
		return ""
	}

	ident, err := s.backend.SignUp(ctx, email, password)
	if err != nil {
		observability.RecordAuthOperation("signup", "failure")
		return s.failSignup(err)
	}

	clean := validate.SanitizeUsername(username)
	if insErr := s.profiles.Insert(ctx, &profile.Profile{ID: ident.ID, Username: clean}); insErr != nil {
		errutil.LogWarn(s.logger, "profile insert after signup failed", insErr)
	}

	if _, signInErr := s.backend.SignIn(ctx, email, password); signInErr != nil {
		// The account exists; a failed immediate sign-in is a soft outcome,
		// not a signup failure.
		errutil.LogWarn(s.logger, "post-signup sign-in failed", signInErr)
		s.soften(MsgAccountCreated)
		observability.RecordAuthOperation("signup", "soft")
		return PathLogin
	}

	s.setUser(&User{
		ID:        ident.ID,
		Email:     ident.Email,
		Username:  clean,
		CreatedAt: ident.CreatedAt,
	})
	observability.RecordAuthOperation("signup", "success")
	return PathHome
}

// failSignup maps a backend signup rejection to its stable user-facing
// message and navigation intent.
func (s *Session) failSignup(err error) (redirect string) {
	kind, ok := RejectionKind(err)
	if !ok {
		errutil.LogError(s.logger, "signup failed", err)
		s.fail(MsgGenericError)
		return ""
	}

	switch kind {
	case KindWeakPassword:
		var berr *BackendError
		errors.As(err, &berr)
		s.fail(weakPasswordMessage(berr.Message))
		return ""
	case KindEmailTaken:
		s.fail(MsgEmailRegistered)
		return PathLogin
	case KindInvalidEmail:
		s.fail(MsgInvalidEmail)
		return ""
	default:
		errutil.LogError(s.logger, "signup rejected", err)
		s.fail(MsgGenericError)
		return ""
	}
}

// BeginVerification records the pending identity for the OTP flow. The
// flow is independently invocable; Signup does not feed it.
func (s *Session) BeginVerification(email, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempEmail = email
	s.tempUsername = username
}

// VerifyOtp confirms the pending email with a one-time code. On success
// the profile is created, the pending identity cleared, and the user set.
func (s *Session) VerifyOtp(ctx context.Context, code string) (redirect string) {
	s.begin()
	defer s.end()

	s.mu.Lock()
	email, username := s.tempEmail, s.tempUsername
	s.mu.Unlock()

	if email == "" || username == "" {
		s.fail(MsgVerifyExpired)
		observability.RecordAuthOperation("verify", "failure")
		return ""
	}

	ident, err := s.backend.VerifyCode(ctx, email, code)
	if err != nil {
		errutil.LogWarn(s.logger, "code verification failed", err)
		s.fail(MsgCodeInvalid)
		observability.RecordAuthOperation("verify", "failure")
		return ""
	}

	clean := validate.SanitizeUsername(username)
	if insErr := s.profiles.Insert(ctx, &profile.Profile{ID: ident.ID, Username: clean}); insErr != nil {
		errutil.LogWarn(s.logger, "profile insert after verification failed", insErr)
	}

	s.mu.Lock()
	s.tempEmail, s.tempUsername = "", ""
	s.mu.Unlock()

	s.setUser(&User{
		ID:        ident.ID,
		Email:     ident.Email,
		Username:  clean,
		CreatedAt: ident.CreatedAt,
	})
	observability.RecordAuthOperation("verify", "success")
	return PathHome
}

// ResendOtp requests a fresh code for the pending email. Failure is
// reported, not fatal: the pending identity is preserved so the user can
// retry.
func (s *Session) ResendOtp(ctx context.Context) {
	s.begin()
	defer s.end()

	s.mu.Lock()
	email := s.tempEmail
	s.mu.Unlock()

	if email == "" {
		s.fail(MsgVerifyExpired)
		return
	}

	if err := s.backend.ResendCode(ctx, email); err != nil {
		errutil.LogWarn(s.logger, "code resend failed", err)
		s.fail(MsgResendFailed)
		observability.RecordAuthOperation("resend", "failure")
		return
	}
	s.soften(MsgCodeResent)
	observability.RecordAuthOperation("resend", "success")
}

// Logout signs out of the backend and destroys the local user. The user is
// cleared regardless of the backend outcome; a transport failure is
// reported but does not keep the session authenticated.
func (s *Session) Logout(ctx context.Context) (redirect string) {
	err := s.backend.SignOut(ctx)

	s.mu.Lock()
	s.user = nil
	s.successMsg = ""
	if err != nil {
		s.errMsg = MsgGenericError
	}
	s.mu.Unlock()

	if err != nil {
		errutil.LogWarn(s.logger, "backend sign-out failed", err)
		observability.RecordAuthOperation("logout", "soft")
	} else {
		observability.RecordAuthOperation("logout", "success")
	}
	return PathLogin
}

// Restore reconstructs the user from an existing backend session on load.
// Any failure leaves the session unauthenticated; nothing is reported to
// the caller.
func (s *Session) Restore(ctx context.Context) {
	ident, err := s.backend.CurrentSession(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			errutil.LogWarn(s.logger, "session restore failed", err)
		}
		s.mu.Lock()
		s.user = nil
		s.mu.Unlock()
		return
	}

	user := &User{
		ID:        ident.ID,
		Email:     ident.Email,
		CreatedAt: ident.CreatedAt,
		LastLogin: ident.LastLogin,
	}
	if prof, profErr := s.profiles.GetByID(ctx, ident.ID); profErr == nil {
		user.Username = prof.Username
	} else if !errors.Is(profErr, profile.ErrNotFound) {
		errutil.LogWarn(s.logger, "profile lookup during restore failed", profErr)
	}

	s.setUser(user)
}

// begin marks an operation in flight and clears both messages, keeping
// error and success mutually exclusive across the operation boundary.
func (s *Session) begin() {
	s.mu.Lock()
	s.processing = true
	s.errMsg = ""
	s.successMsg = ""
	s.mu.Unlock()
}

// end clears the processing flag. Deferred by every operation so the flag
// is false on every exit path.
func (s *Session) end() {
	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()
}

func (s *Session) fail(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.successMsg = ""
	s.mu.Unlock()
}

func (s *Session) soften(msg string) {
	s.mu.Lock()
	s.successMsg = msg
	s.errMsg = ""
	s.mu.Unlock()
}

func (s *Session) setUser(u *User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// emailLocalPart returns the part of an email address before the at sign.
func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
