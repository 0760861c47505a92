package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticTokenSource(t *testing.T) {
	t.Parallel()

	token, err := Static("tok-abc").Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", token)

	_, err = Static("").Token(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
}

func TestEnvTokenSourceReadsOnEveryCall(t *testing.T) {
	source := FromEnv("ETRACKER_TEST_TOKEN")

	_, err := source.Token(context.Background())
	require.ErrorIs(t, err, ErrNoToken)

	t.Setenv("ETRACKER_TEST_TOKEN", "  tok-env  ")
	token, err := source.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-env", token)

	t.Setenv("ETRACKER_TEST_TOKEN", "tok-rotated")
	token, err = source.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-rotated", token)
}

func TestEnvTokenSourceDefaultsKey(t *testing.T) {
	t.Setenv(EnvTokenVar, "tok-default")

	token, err := FromEnv("").Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-default", token)
}

func TestCachedTokenSourceLifecycle(t *testing.T) {
	t.Parallel()

	cache := NewCachedTokenSource()

	_, err := cache.Token(context.Background())
	require.ErrorIs(t, err, ErrNoToken)

	require.ErrorIs(t, cache.Set(""), ErrNoToken)
	require.NoError(t, cache.Set("tok-cached"))

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-cached", token)

	// Set replaces the previous token in place.
	require.NoError(t, cache.Set("tok-new"))
	token, err = cache.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-new", token)

	cache.Clear()
	_, err = cache.Token(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
}
