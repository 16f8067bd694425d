// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package memory implements auth.Backend against an in-process account
// store. It backs development and tests where no Supabase project is
// available, and enforces the same rejection kinds a hosted backend
// would.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/solverspace/solverspace/internal/auth"
	"github.com/solverspace/solverspace/internal/validate"
)

// Config holds the store's behavior switches.
type Config struct {
	// RequireConfirmation makes signup issue a one-time code instead of
	// activating the account immediately, mirroring a hosted backend
	// with email confirmation turned on.
	RequireConfirmation bool
}

// account is one registered identity.
type account struct {
	id        string
	email     string
	hash      string
	confirmed bool
	code      string
	createdAt time.Time
	lastLogin *time.Time
}

// Store holds all accounts. It is shared; per-session sign-in state
// lives in the clients returned by Client.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account // keyed by lowercase email
}

// NewStore creates a Store with a no-op logger.
func NewStore(cfg Config) (*Store, error) {
	return NewStoreWithLogger(cfg, slog.New(slog.DiscardHandler))
}

// NewStoreWithLogger creates a Store with the provided logger.
func NewStoreWithLogger(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Store{
		cfg:      cfg,
		logger:   logger,
		accounts: make(map[string]*account),
	}, nil
}

// Client returns a fresh per-session backend over this store.
func (s *Store) Client() auth.Backend {
	return &client{store: s}
}

// LastCode returns the pending confirmation code for an email, or ""
// when none is outstanding. Development and test hook; a hosted backend
// delivers codes by mail.
func (s *Store) LastCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[strings.ToLower(email)]; ok {
		return acct.code
	}
	return ""
}

func (s *Store) register(email, password string) (*auth.Identity, error) {
	if state := validate.Email(email); !state.Valid {
		return nil, &auth.BackendError{Kind: auth.KindInvalidEmail, Message: "Unable to validate email address"}
	}
	if reasons := passwordRejections(password); len(reasons) > 0 {
		return nil, &auth.BackendError{Kind: auth.KindWeakPassword, Message: strings.Join(reasons, ". ")}
	}

	key := strings.ToLower(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[key]; exists {
		return nil, &auth.BackendError{Kind: auth.KindEmailTaken, Message: "User already registered"}
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, &auth.BackendError{Kind: auth.KindUnavailable, Message: "account creation failed"}
	}

	acct := &account{
		id:        ulid.Make().String(),
		email:     email,
		hash:      hash,
		confirmed: !s.cfg.RequireConfirmation,
		createdAt: time.Now(),
	}
	if s.cfg.RequireConfirmation {
		acct.code = newCode()
		s.logger.Debug("confirmation code issued", "email", email)
	}
	s.accounts[key] = acct

	return acct.identity(), nil
}

func (s *Store) authenticate(email, password string) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return nil, &auth.BackendError{Kind: auth.KindInvalidCredentials, Message: "Invalid login credentials"}
	}

	match, err := verifyPassword(password, acct.hash)
	if err != nil || !match {
		return nil, &auth.BackendError{Kind: auth.KindInvalidCredentials, Message: "Invalid login credentials"}
	}
	if !acct.confirmed {
		return nil, &auth.BackendError{Kind: auth.KindInvalidCredentials, Message: "Email not confirmed"}
	}

	now := time.Now()
	acct.lastLogin = &now
	return acct.identity(), nil
}

func (s *Store) confirm(email, code string) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok || acct.code == "" || acct.code != code {
		return nil, &auth.BackendError{Kind: auth.KindCodeInvalid, Message: "Token has expired or is invalid"}
	}

	acct.confirmed = true
	acct.code = ""
	now := time.Now()
	acct.lastLogin = &now
	return acct.identity(), nil
}

func (s *Store) reissue(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Silent for unknown or already-confirmed accounts so the endpoint
	// does not leak which emails are registered.
	if acct, ok := s.accounts[strings.ToLower(email)]; ok && !acct.confirmed {
		acct.code = newCode()
		s.logger.Debug("confirmation code reissued", "email", email)
	}
	return nil
}

func (s *Store) identityByID(id string) (*auth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acct := range s.accounts {
		if acct.id == id {
			return acct.identity(), true
		}
	}
	return nil, false
}

func (a *account) identity() *auth.Identity {
	ident := &auth.Identity{
		ID:        a.id,
		Email:     a.email,
		CreatedAt: a.createdAt,
	}
	if a.lastLogin != nil {
		t := *a.lastLogin
		ident.LastLogin = &t
	}
	return ident
}

// passwordRejections phrases each failed strength check the way a hosted
// backend does, one sentence per failure, so the UI's bullet-list
// rendering applies unchanged.
func passwordRejections(password string) []string {
	var reasons []string
	for _, check := range validate.PasswordChecks(password) {
		if check.Passed {
			continue
		}
		reasons = append(reasons, "Password should have "+lowerFirst(check.Message))
	}
	return reasons
}

func lowerFirst(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// newCode returns a 6-digit one-time code.
func newCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// client is the per-session view over a Store. It holds which identity
// is currently signed in, the way a token-holding HTTP client would.
type client struct {
	store *Store

	mu        sync.Mutex
	currentID string
}

var _ auth.Backend = (*client)(nil)

func (c *client) SignIn(_ context.Context, email, password string) (*auth.Identity, error) {
	ident, err := c.store.authenticate(email, password)
	if err != nil {
		return nil, err
	}
	c.setCurrent(ident.ID)
	return ident, nil
}

func (c *client) SignUp(_ context.Context, email, password string) (*auth.Identity, error) {
	return c.store.register(email, password)
}

func (c *client) SignOut(context.Context) error {
	c.setCurrent("")
	return nil
}

func (c *client) CurrentSession(context.Context) (*auth.Identity, error) {
	c.mu.Lock()
	id := c.currentID
	c.mu.Unlock()

	if id == "" {
		return nil, auth.ErrNoSession
	}
	ident, ok := c.store.identityByID(id)
	if !ok {
		return nil, auth.ErrNoSession
	}
	return ident, nil
}

func (c *client) VerifyCode(_ context.Context, email, code string) (*auth.Identity, error) {
	ident, err := c.store.confirm(email, code)
	if err != nil {
		return nil, err
	}
	c.setCurrent(ident.ID)
	return ident, nil
}

func (c *client) ResendCode(_ context.Context, email string) error {
	return c.store.reissue(email)
}

func (c *client) setCurrent(id string) {
	c.mu.Lock()
	c.currentID = id
	c.mu.Unlock()
}
