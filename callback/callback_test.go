package callback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKindStringAndParse(t *testing.T) {
	for _, k := range Kinds {
		require.True(t, k.Valid())
		got, ok := ParseKind(k.String())
		require.True(t, ok)
		require.Equal(t, k, got)
	}
	require.False(t, KindInvalid.Valid())
	require.False(t, Kind(42).Valid())
	require.Equal(t, "Kind(42)", Kind(42).String())
	require.Equal(t, "OnBalanceAvailable", KindBalanceAvailable.EntryPoint())

	_, ok := ParseKind("NoSuchKind")
	require.False(t, ok)
}

func TestImplements(t *testing.T) {
	cases := []struct {
		target any
		kind   Kind
		want   bool
	}{
		{&BalanceStub{}, KindBalanceAvailable, true},
		{&BalanceStub{}, KindMintNonceAvailable, true},
		{&BalanceStub{}, KindNonceAvailable, false},
		{&NonceStub{}, KindNonceAvailable, true},
		{&InfoStub{}, KindInfoAvailable, true},
		{&AuthStub{}, KindSetupComplete, true},
		{&WalletStub{}, KindWalletCreateComplete, true},
		{&BurnTicketsStub{}, KindBurnTicketsAvailable, true},
		{&BurnTicketsStub{}, KindBalanceAvailable, false},
		{nil, KindBalanceAvailable, false},
		{&BalanceStub{}, KindInvalid, false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Implements(c.target, c.kind), "%T as %v", c.target, c.kind)
	}
}

func TestStubRecordsFirstResultOnly(t *testing.T) {
	cb := &BalanceStub{}
	cb.OnBalanceAvailable(int(StatusSuccess), 1000, "ok")
	cb.OnBalanceAvailable(int(StatusError), 1, "late")

	require.NoError(t, cb.Wait(context.Background()))
	require.Equal(t, StatusSuccess, cb.Status)
	require.Equal(t, int64(1000), cb.Value)
	require.Equal(t, "ok", cb.Info)
}

func TestStubWaitHonoursContext(t *testing.T) {
	cb := &NonceStub{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, cb.Wait(ctx), context.DeadlineExceeded)
}

func TestStubWaitFromManyGoroutines(t *testing.T) {
	cb := &WalletStub{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, cb.Wait(context.Background()))
		}()
	}
	cb.OnWalletCreateComplete(int(StatusSuccess), `{"client_id":"c1"}`, "")
	wg.Wait()
	require.Equal(t, `{"client_id":"c1"}`, cb.Wallet)
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "success", StatusSuccess.String())
	require.Equal(t, "auth timeout", StatusAuthTimeout.String())
	require.Equal(t, "status(99)", Status(99).String())
	require.True(t, StatusSuccess.OK())
	require.False(t, StatusUnknown.OK())
}
