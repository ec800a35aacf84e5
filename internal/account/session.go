// Package account handles login, signup, the profile and logout against the
// storefront API and the local store's isLoggedIn flag.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kingrea/storefront/internal/api"
	"github.com/kingrea/storefront/internal/changefeed"
	"github.com/kingrea/storefront/internal/store"
)

// DefaultUserID is the profile the users endpoint serves to this client.
const DefaultUserID = 1

// ErrNoToken is returned when the login endpoint answers without a token.
var ErrNoToken = errors.New("account: login response carried no token")

// Journal records account activity.
type Journal interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
}

type nopJournal struct{}

func (nopJournal) Info(string, ...any) {}
func (nopJournal) Warn(string, ...any) {}

// Session wraps the account endpoints.
type Session struct {
	client  *api.Client
	store   *store.Store
	logger  *zap.Logger
	journal Journal
	changes changefeed.Publisher
	userID  int
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJournal records logins, signups and logouts in j.
func WithJournal(j Journal) Option {
	return func(s *Session) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithChanges announces logouts on p.
func WithChanges(p changefeed.Publisher) Option {
	return func(s *Session) {
		s.changes = p
	}
}

// WithUserID overrides the profile id.
func WithUserID(id int) Option {
	return func(s *Session) {
		if id > 0 {
			s.userID = id
		}
	}
}

// NewSession builds a session.
func NewSession(client *api.Client, s *store.Store, opts ...Option) *Session {
	sess := &Session{
		client:  client,
		store:   s,
		logger:  zap.NewNop(),
		journal: nopJournal{},
		userID:  DefaultUserID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sess)
		}
	}
	return sess
}

// LoggedIn reads the persisted flag. Anything unreadable counts as logged out.
func (s *Session) LoggedIn(ctx context.Context) bool {
	var flag bool
	return s.store.Get(ctx, store.KeyLoggedIn, &flag) && flag
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login posts the credentials and, on a token, persists isLoggedIn=true.
// The token itself is not kept.
func (s *Session) Login(ctx context.Context, creds Credentials) error {
	creds = Credentials{
		Username: strings.TrimSpace(creds.Username),
		Password: strings.TrimSpace(creds.Password),
	}
	if err := ValidateCredentials(creds); err != nil {
		return err
	}
	var resp loginResponse
	if err := s.client.Post(ctx, "/auth/login", creds, &resp); err != nil {
		s.logger.Warn("login failed", zap.String("username", creds.Username), zap.Error(err))
		return err
	}
	if resp.Token == "" {
		return ErrNoToken
	}
	if err := s.store.Set(ctx, store.KeyLoggedIn, true); err != nil {
		return err
	}
	s.logger.Info("logged in", zap.String("username", creds.Username))
	s.journal.Info("Logged in as %s", creds.Username)
	return nil
}

type signupResponse struct {
	ID int `json:"id"`
}

// Signup validates the form and creates the user, returning the new id.
func (s *Session) Signup(ctx context.Context, form SignupForm) (int, error) {
	if err := form.Validate(); err != nil {
		return 0, err
	}
	user := form.User()
	var resp signupResponse
	if err := s.client.Post(ctx, "/users", user, &resp); err != nil {
		s.logger.Warn("signup failed", zap.String("username", user.Username), zap.Error(err))
		return 0, err
	}
	s.logger.Info("user created", zap.Int("user_id", resp.ID))
	s.journal.Info("Created account %s", user.Username)
	return resp.ID, nil
}

// Profile fetches the current user.
func (s *Session) Profile(ctx context.Context) (User, error) {
	var user User
	if err := s.client.Get(ctx, s.userPath(), &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateProfile validates and saves the form, returning the stored user. The
// password is optional here.
func (s *Session) UpdateProfile(ctx context.Context, form SignupForm) (User, error) {
	if err := form.ValidateProfile(); err != nil {
		return User{}, err
	}
	var user User
	if err := s.client.Put(ctx, s.userPath(), form.User(), &user); err != nil {
		return User{}, err
	}
	s.journal.Info("Updated profile")
	return user, nil
}

// Logout wipes the local store: cart, favorites and the login flag.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		s.journal.Warn("Logout could not clear local data")
		return err
	}
	s.logger.Info("logged out")
	if s.changes != nil {
		s.changes.Publish(changefeed.SessionEnded, 0)
	}
	s.journal.Info("Logged out")
	return nil
}

func (s *Session) userPath() string {
	return fmt.Sprintf("/users/%d", s.userID)
}

// UserMessage turns an account error into alert text.
func UserMessage(err error) string {
	var verr *ValidationError
	var apiErr *api.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "Please fix the highlighted fields"
	case errors.Is(err, ErrNoToken):
		return "Something went wrong"
	case errors.As(err, &apiErr):
		if apiErr.Status == 0 {
			return "Please connect to the Internet"
		}
		return apiErr.UserMessage()
	default:
		return "Something went wrong"
	}
}
