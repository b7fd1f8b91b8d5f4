//go:build !ios && !android && (amd64 || arm64)

package bindings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/internal/platform"
	"github.com/obinnaokechukwu/zcnbridge/marshal"
)

func TestLibrarySearchPathsHonoursEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(SearchDirEnv, dir)

	paths := LibrarySearchPaths()
	require.NotEmpty(t, paths)
	require.Equal(t, dir, paths[0])
}

func TestFindLibrary(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(SearchDirEnv, dir)

	_, err := FindLibrary(platform.CoreLibrary, []int{1})
	if err == nil {
		t.Skip("a system copy of the core is installed")
	}
	require.ErrorIs(t, err, ErrLibraryNotFound)
	require.Contains(t, err.Error(), platform.String())

	want := filepath.Join(dir, platform.FormatLibraryName(platform.CoreLibrary, 1))
	require.NoError(t, os.WriteFile(want, nil, 0o644))
	got, err := FindLibrary(platform.CoreLibrary, []int{1})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestNotLoaded(t *testing.T) {
	require.False(t, IsLoaded())
	require.Empty(t, Version())
	require.ErrorIs(t, GetBalance(1), ErrNotLoaded)
	require.ErrorIs(t, SetCallback(callback.KindBalanceAvailable, 0), ErrNotLoaded)
	_, err := ObjectString(1, "hash")
	require.ErrorIs(t, err, ErrNotLoaded)
	require.ErrorIs(t, ReleaseObject(1), ErrNotLoaded)
}

func TestFlatten(t *testing.T) {
	env, err := marshal.Lower(3, callback.KindInfoAvailable, marshal.Args{
		Op:     callback.OpGetUserPools,
		Status: callback.StatusNetworkError,
		Info:   "pools",
		Err:    "timeout",
	}, marshal.ModifiedUTF8)
	require.NoError(t, err)

	fa, err := Flatten(env)
	require.NoError(t, err)
	require.Equal(t, ForwardArgs{
		Status: int32(callback.StatusNetworkError),
		Op:     int32(callback.OpGetUserPools),
		S1:     "pools",
		S2:     "timeout",
	}, fa)

	env, err = marshal.Lower(3, callback.KindBurnTicketsAvailable, marshal.Args{
		Tickets: callback.BurnTickets{{Hash: "h", Nonce: 1}},
	}, marshal.ModifiedUTF8)
	require.NoError(t, err)
	fa, err = Flatten(env)
	require.NoError(t, err)
	require.NotEmpty(t, fa.Buf)

	env, err = marshal.Lower(3, callback.KindSetupComplete, marshal.Args{Err: "x"}, marshal.UTF8)
	require.NoError(t, err)
	_, err = Flatten(env)
	require.ErrorIs(t, err, marshal.ErrEncoding)

	_, err = Flatten(marshal.Envelope{Kind: callback.KindInvalid})
	require.ErrorIs(t, err, marshal.ErrUnknownKind)
}

// Integration test - only runs if the core is available
func TestLoadCore(t *testing.T) {
	if _, err := FindLibrary(platform.CoreLibrary, []int{1}); err != nil {
		t.Skip("wallet core not installed")
	}
	require.NoError(t, Load(""))
	require.True(t, IsLoaded())
	t.Logf("wallet core loaded from %s, version %q", Path(), Version())
}
