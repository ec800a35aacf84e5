package account

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/storefront/internal/api"
	"github.com/kingrea/storefront/internal/changefeed"
	"github.com/kingrea/storefront/internal/store"
)

type memJournal struct {
	lines []string
}

func (m *memJournal) Info(format string, _ ...any) { m.lines = append(m.lines, "INFO "+format) }
func (m *memJournal) Warn(format string, _ ...any) { m.lines = append(m.lines, "WARN "+format) }

func newSession(t *testing.T, handler http.HandlerFunc) (*Session, *store.Store, *memJournal) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := store.New(store.NewMemoryBackend())
	journal := &memJournal{}
	return NewSession(api.New(srv.URL, time.Second), s, WithJournal(journal)), s, journal
}

const userJSON = `{"id":1,"email":"john@gmail.com","username":"johnd","password":"m38rmF$","name":{"firstname":"john","lastname":"doe"},"address":{"city":"kilcoole","street":"7835 new road","number":3,"zipcode":"12926-3874","geolocation":{"lat":"-37.3159","long":"81.1496"}},"phone":"1-570-236-7033","__v":0}`

func TestLoginPersistsFlag(t *testing.T) {
	sess, _, journal := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "mor_2314", creds.Username)
		_, _ = io.WriteString(w, `{"token":"eyJhbGciOi"}`)
	})
	ctx := context.Background()
	require.False(t, sess.LoggedIn(ctx))
	require.NoError(t, sess.Login(ctx, Credentials{Username: " mor_2314 ", Password: "83r5^_"}))
	assert.True(t, sess.LoggedIn(ctx))
	assert.Equal(t, []string{"INFO Logged in as %s"}, journal.lines)
}

func TestLoginWithoutTokenFails(t *testing.T) {
	sess, _, _ := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	ctx := context.Background()
	err := sess.Login(ctx, Credentials{Username: "a", Password: "b"})
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, sess.LoggedIn(ctx))
	assert.Equal(t, "Something went wrong", UserMessage(err))
}

func TestLoginRejectedShowsServerMessage(t *testing.T) {
	sess, _, _ := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "username or password is incorrect", http.StatusUnauthorized)
	})
	err := sess.Login(context.Background(), Credentials{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.Equal(t, "username or password is incorrect", UserMessage(err))
}

func TestLoginValidatesBeforeCalling(t *testing.T) {
	called := false
	sess, _, _ := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	err := sess.Login(context.Background(), Credentials{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.False(t, called)
}

func TestSignupPostsUser(t *testing.T) {
	sess, _, _ := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		var u User
		require.NoError(t, json.NewDecoder(r.Body).Decode(&u))
		assert.Equal(t, "johnd", u.Name.Firstname)
		assert.Equal(t, "kilcoole", u.Address.City)
		_, _ = io.WriteString(w, `{"id":11}`)
	})
	id, err := sess.Signup(context.Background(), SignupForm{
		Email:    "john@gmail.com",
		Username: "johnd",
		Password: "Secr3t!",
		City:     "kilcoole",
		Street:   "new road",
		Phone:    "1570236498",
	})
	require.NoError(t, err)
	assert.Equal(t, 11, id)
}

func TestProfileDecodesNumericHouseNumber(t *testing.T) {
	sess, _, _ := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/1", r.URL.Path)
		_, _ = io.WriteString(w, userJSON)
	})
	user, err := sess.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "john doe", user.DisplayName())
	assert.Equal(t, HouseNumber("3"), user.Address.Number)
	assert.Equal(t, "-37.3159", user.Address.Geolocation.Lat)
}

func TestUpdateProfilePuts(t *testing.T) {
	sess, _, _ := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/users/1", r.URL.Path)
		_, _ = io.WriteString(w, userJSON)
	})
	user, err := sess.UpdateProfile(context.Background(), SignupForm{
		Email:    "john@gmail.com",
		Username: "johnd",
		Password: "Secr3t!",
		City:     "kilcoole",
		Street:   "new road",
		Phone:    "1570236498",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
}

func TestUpdateProfileWithoutPassword(t *testing.T) {
	sess, _, _ := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		var u map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&u))
		assert.NotContains(t, u, "password")
		assert.Equal(t, "9900144699", u["phone"])
		_, _ = io.WriteString(w, userJSON)
	})
	_, err := sess.UpdateProfile(context.Background(), SignupForm{
		Email:    "john@gmail.com",
		Username: "johnd",
		City:     "kilcoole",
		Street:   "new road",
		Phone:    "9900144699",
	})
	require.NoError(t, err)

	_, err = sess.UpdateProfile(context.Background(), SignupForm{Username: "johnd", Phone: "12"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, MsgInvalidPhone, verr.Message("phone"))
	assert.Empty(t, verr.Message("password"))
}

func TestLogoutClearsStore(t *testing.T) {
	sess, s, journal := newSession(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token":"t"}`)
	})
	ctx := context.Background()
	require.NoError(t, sess.Login(ctx, Credentials{Username: "a", Password: "b"}))
	require.NoError(t, s.Set(ctx, store.KeyCart, []int{1}))
	require.NoError(t, sess.Logout(ctx))
	assert.False(t, sess.LoggedIn(ctx))
	var cart []int
	assert.False(t, s.Get(ctx, store.KeyCart, &cart))
	assert.Contains(t, journal.lines, "INFO Logged out")
}

func TestLogoutAnnouncesSessionEnd(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	bus := changefeed.NewBus()
	sub := bus.Subscribe(changefeed.TopicSession)
	defer sub.Close()
	sess := NewSession(api.New(srv.URL, time.Second), store.New(store.NewMemoryBackend()), WithChanges(bus))

	require.NoError(t, sess.Logout(context.Background()))
	event := <-sub.Events
	assert.Equal(t, changefeed.SessionEnded, event.Kind)
	assert.Zero(t, event.ProductID)
}

func TestUserMessageOffline(t *testing.T) {
	err := &api.Error{Method: http.MethodPost, Path: "/auth/login", Err: errors.New("connection refused")}
	assert.Equal(t, "Please connect to the Internet", UserMessage(err))
	assert.Equal(t, "", UserMessage(nil))
}
