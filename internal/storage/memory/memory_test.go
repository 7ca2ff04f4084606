package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/copilot-auth/internal/models"
	"github.com/pribylovaa/copilot-auth/internal/storage"
)

func newUser(email, name string) *models.User {
	return &models.User{ID: uuid.New(), Email: email, Username: name}
}

func TestCreateUser_And_Lookups(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()
	u := newUser("a@example.com", "alice")

	require.NoError(t, st.CreateUser(ctx, u))

	byEmail, err := st.UserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	byID, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	_, err = st.UserByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateUser_Conflicts(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, newUser("a@example.com", "alice")))

	require.ErrorIs(t, st.CreateUser(ctx, newUser("a@example.com", "other")), storage.ErrAlreadyExists)
	require.ErrorIs(t, st.CreateUser(ctx, newUser("b@example.com", "alice")), storage.ErrAlreadyExists)
}

func TestReturnedUser_IsACopy(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()
	u := newUser("a@example.com", "alice")
	require.NoError(t, st.CreateUser(ctx, u))
	require.NoError(t, st.AddRefreshToken(ctx, u.ID, "t1"))

	got, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	got.RefreshWhitelist[0] = "mutated"

	again, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"t1"}, again.RefreshWhitelist)
}

func TestWhitelist_Lifecycle(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()
	u := newUser("a@example.com", "alice")
	require.NoError(t, st.CreateUser(ctx, u))

	require.NoError(t, st.AddRefreshToken(ctx, u.ID, "t1"))
	require.NoError(t, st.AddRefreshToken(ctx, u.ID, "t2"))

	ok, err := st.RotateRefreshToken(ctx, u.ID, "t1", "t3")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.RotateRefreshToken(ctx, u.ID, "t1", "t4")
	require.NoError(t, err)
	require.False(t, ok)

	got, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"t2", "t3"}, got.RefreshWhitelist)

	require.NoError(t, st.RemoveRefreshTokens(ctx, u.ID, "t2", "absent"))
	got, _ = st.UserByID(ctx, u.ID)
	require.Equal(t, []string{"t3"}, got.RefreshWhitelist)

	require.NoError(t, st.ClearRefreshTokens(ctx, u.ID))
	got, _ = st.UserByID(ctx, u.ID)
	require.Empty(t, got.RefreshWhitelist)
}

func TestWhitelist_UnknownUser_NotFound(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()
	id := uuid.New()

	require.ErrorIs(t, st.AddRefreshToken(ctx, id, "t"), storage.ErrNotFound)
	_, err := st.RotateRefreshToken(ctx, id, "a", "b")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, st.RemoveRefreshTokens(ctx, id, "t"), storage.ErrNotFound)
	require.ErrorIs(t, st.ClearRefreshTokens(ctx, id), storage.ErrNotFound)
	require.ErrorIs(t, st.UpdateImage(ctx, id, "x"), storage.ErrNotFound)
}

func TestRotate_ConcurrentSameToken_SingleWinner(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()
	u := newUser("a@example.com", "alice")
	require.NoError(t, st.CreateUser(ctx, u))
	require.NoError(t, st.AddRefreshToken(ctx, u.ID, "old"))

	const n = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := st.RotateRefreshToken(ctx, u.ID, "old", fmt.Sprintf("new-%d", i))
			require.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())

	got, _ := st.UserByID(ctx, u.ID)
	require.Len(t, got.RefreshWhitelist, 1)
}
