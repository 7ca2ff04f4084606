package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/copilot-auth/internal/models"
	"github.com/pribylovaa/copilot-auth/internal/storage"
	"github.com/pribylovaa/copilot-auth/internal/storage/memory"
	"github.com/pribylovaa/copilot-auth/internal/token"
	"github.com/pribylovaa/copilot-auth/mocks"
)

func googleProfile(email string) *models.ExternalProfile {
	return &models.ExternalProfile{
		Subject:       "google-sub-1",
		Email:         email,
		EmailVerified: true,
		Picture:       "https://example.com/a.png",
		Tokens:        models.ProviderTokens{AccessToken: "ya29.access", RefreshToken: "1//refresh"},
	}
}

func TestFederationCallback_UnseenEmail_CreatesExactlyOneUser(t *testing.T) {
	t.Parallel()

	e := newEnv(t, testCfg())
	ctx := context.Background()

	pair, uid, err := e.svc.FederationCallback(ctx, googleProfile("Carol@Example.com"))
	require.NoError(t, err)

	u, err := e.st.UserByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	require.Equal(t, uid, u.ID)
	require.Equal(t, "carol", u.Username)
	require.False(t, u.HasPassword())
	require.Equal(t, "https://example.com/a.png", u.Image)
	require.Equal(t, []string{pair.RefreshToken}, u.RefreshWhitelist)

	// Повторный вход тем же email не создаёт второго пользователя.
	_, again, err := e.svc.FederationCallback(ctx, googleProfile("carol@example.com"))
	require.NoError(t, err)
	require.Equal(t, uid, again)
	require.Len(t, e.whitelist(t, uid), 2)
}

func TestFederationCallback_ExistingPasswordUser_Linked(t *testing.T) {
	t.Parallel()

	e := newEnv(t, testCfg())
	u := e.seedPasswordUser(t, "alice@example.com")
	ctx := context.Background()

	_, uid, err := e.svc.FederationCallback(ctx, googleProfile("alice@example.com"))
	require.NoError(t, err)
	require.Equal(t, u.ID, uid)

	stored, err := e.st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/a.png", stored.Image)
	require.True(t, stored.HasPassword())

	// Пароль продолжает работать.
	_, _, err = e.svc.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
}

func TestFederationCallback_UsernameTaken_FallsBackToEmail(t *testing.T) {
	t.Parallel()

	e := newEnv(t, testCfg())
	ctx := context.Background()

	_, _, err := e.svc.Register(ctx, "someone@else.org", "dave", testPassword)
	require.NoError(t, err)

	_, uid, err := e.svc.FederationCallback(ctx, googleProfile("dave@example.com"))
	require.NoError(t, err)

	u, err := e.st.UserByID(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, "dave@example.com", u.Username)
}

func TestFederationCallback_EmailMissing_NoUserCreated(t *testing.T) {
	t.Parallel()

	e := newEnv(t, testCfg())
	ctx := context.Background()

	p := googleProfile("")
	_, _, err := e.svc.FederationCallback(ctx, p)
	require.ErrorIs(t, err, ErrEmailMissing)
	require.ErrorIs(t, err, ErrProviderError)

	_, _, err = e.svc.FederationCallback(ctx, nil)
	require.ErrorIs(t, err, ErrProviderError)

	_, err = e.svc.ProviderTokens(ctx, uuid.New())
	require.ErrorIs(t, err, ErrProviderTokensNotFound)
}

func TestProviderTokens_CacheLifecycle(t *testing.T) {
	t.Parallel()

	e := newEnv(t, testCfg())
	ctx := context.Background()

	u := e.seedPasswordUser(t, "erin@example.com")
	_, err := e.svc.ProviderTokens(ctx, u.ID)
	require.ErrorIs(t, err, ErrProviderTokensNotFound)

	_, uid, err := e.svc.FederationCallback(ctx, googleProfile("erin@example.com"))
	require.NoError(t, err)
	require.Equal(t, u.ID, uid)

	got, err := e.svc.ProviderTokens(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, models.ProviderTokens{AccessToken: "ya29.access", RefreshToken: "1//refresh"}, got)

	e.clock.Advance(time.Hour)
	_, err = e.svc.ProviderTokens(ctx, uid)
	require.ErrorIs(t, err, ErrProviderTokensNotFound)
}

func TestFederationCallback_CacheWriteFailure_RevokesRefreshToken(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	pc := mocks.NewMockProviderTokenCache(ctrl)

	codec, err := token.New("unit-secret")
	require.NoError(t, err)

	st := memory.New()
	svc := New(st, codec, testCfg(), WithProviderCache(pc, time.Hour))

	cacheErr := errors.New("redis down")
	pc.EXPECT().
		Put(gomock.Any(), gomock.Any(), models.ProviderTokens{AccessToken: "ya29.access", RefreshToken: "1//refresh"}, time.Hour).
		Return(cacheErr)

	ctx := context.Background()
	_, _, err = svc.FederationCallback(ctx, googleProfile("frank@example.com"))
	require.ErrorIs(t, err, ErrFederationCache)
	require.ErrorIs(t, err, cacheErr)

	u, err := st.UserByEmail(ctx, "frank@example.com")
	require.NoError(t, err)
	require.Empty(t, u.RefreshWhitelist)
}

func TestFederationCallback_NoCacheConfigured(t *testing.T) {
	t.Parallel()

	codec, err := token.New("unit-secret")
	require.NoError(t, err)

	st := memory.New()
	svc := New(st, codec, testCfg())

	ctx := context.Background()
	_, _, err = svc.FederationCallback(ctx, googleProfile("gina@example.com"))
	require.ErrorIs(t, err, ErrFederationCache)

	_, err = svc.ProviderTokens(ctx, uuid.New())
	require.ErrorIs(t, err, ErrProviderTokensNotFound)
}

func TestProviderTokens_CacheErrorPassedThrough(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	pc := mocks.NewMockProviderTokenCache(ctrl)

	codec, err := token.New("unit-secret")
	require.NoError(t, err)

	svc := New(memory.New(), codec, testCfg(), WithProviderCache(pc, time.Hour))

	id := uuid.New()
	cacheErr := errors.New("redis down")
	pc.EXPECT().Get(gomock.Any(), id).Return(models.ProviderTokens{}, cacheErr)

	_, err = svc.ProviderTokens(context.Background(), id)
	require.ErrorIs(t, err, cacheErr)
	require.NotErrorIs(t, err, ErrProviderTokensNotFound)
}

func TestFederationCallback_ConcurrentCreate_ReusesWinner(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	pc := mocks.NewMockProviderTokenCache(ctrl)

	codec, err := token.New("unit-secret")
	require.NoError(t, err)

	svc := New(st, codec, testCfg(), WithProviderCache(pc, time.Hour))

	winner := &models.User{ID: uuid.New(), Email: "hank@example.com", Username: "hank"}

	gomock.InOrder(
		st.EXPECT().UserByEmail(gomock.Any(), "hank@example.com").Return(nil, storage.ErrNotFound),
		st.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists),
		st.EXPECT().UserByEmail(gomock.Any(), "hank@example.com").Return(winner, nil),
		st.EXPECT().AddRefreshToken(gomock.Any(), winner.ID, gomock.Any()).Return(nil),
		pc.EXPECT().Put(gomock.Any(), winner.ID, gomock.Any(), time.Hour).Return(nil),
	)

	_, uid, err := svc.FederationCallback(context.Background(), googleProfile("hank@example.com"))
	require.NoError(t, err)
	require.Equal(t, winner.ID, uid)
}

func TestUsernameFromEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"alice@example.com", "alice"},
		{"John.Doe+tag@x.io", "john.doetag"},
		{"ab@x.io", ""},
		{"ü@x.io", ""},
		{"very_long_local_part_that_goes_on_and_on@x.io", "very_long_local_part_that_goes_o"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, usernameFromEmail(tt.in), tt.in)
	}
}
