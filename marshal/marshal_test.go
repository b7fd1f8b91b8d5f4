package marshal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obinnaokechukwu/zcnbridge/callback"
)

var unicodeSamples = []string{
	"",
	"ok",
	"nul\x00inside",
	"héllo wörld",
	"日本語のテキスト",
	"emoji 🚀 and 𝄞 clef",
	"mixed \u0000\u007f\u0080\u07ff\u0800\uffff\U00010000\U0010ffff",
}

func TestStringRoundTripAllEncodings(t *testing.T) {
	for _, enc := range []Encoding{UTF8, ModifiedUTF8, UTF16LE} {
		for _, s := range unicodeSamples {
			got, err := Decode(Encode(s, enc))
			require.NoError(t, err, "%v %q", enc, s)
			require.Equal(t, s, got, "%v", enc)
		}
	}
}

func TestModifiedUTF8Shape(t *testing.T) {
	require.Equal(t, []byte{0xC0, 0x80}, Encode("\x00", ModifiedUTF8).Data)
	// U+1F680 becomes two 3-byte surrogates, never a 4-byte sequence.
	require.Equal(t, []byte{0xED, 0xA0, 0xBD, 0xED, 0xBA, 0x80}, Encode("🚀", ModifiedUTF8).Data)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []NativeString{
		{Data: []byte{0xff, 0xfe}, Encoding: UTF8},
		{Data: []byte{'a', 0x00}, Encoding: ModifiedUTF8},
		{Data: []byte{0xF0, 0x9F, 0x9A, 0x80}, Encoding: ModifiedUTF8},
		{Data: []byte{0xE0, 0x80}, Encoding: ModifiedUTF8},
		{Data: []byte{0xED, 0xA0, 0xBD}, Encoding: ModifiedUTF8},
		{Data: []byte{0x41}, Encoding: UTF16LE},
		{Data: []byte{0x00, 0xDC}, Encoding: UTF16LE},
		{Data: []byte("x"), Encoding: Encoding(9)},
	}
	for _, c := range cases {
		_, err := Decode(c)
		require.ErrorIs(t, err, ErrEncoding, "%v % x", c.Encoding, c.Data)
	}
}

func TestDecodeCopies(t *testing.T) {
	data := []byte("abc")
	got, err := Decode(NativeString{Data: data, Encoding: UTF8})
	require.NoError(t, err)
	data[0] = 'z'
	require.Equal(t, "abc", got)
}

func TestCString(t *testing.T) {
	buf := []byte("balance ok\x00garbage")
	got := CString(&buf[0])
	require.Equal(t, []byte("balance ok"), got)

	buf[0] = 'B'
	require.Equal(t, byte('b'), got[0], "CString must copy")

	require.Nil(t, CString(nil))
	require.Nil(t, CBytes(nil, 4))

	empty := []byte{0}
	require.Empty(t, CString(&empty[0]))

	s := FromC(&buf[0])
	require.Equal(t, UTF8, s.Encoding)
	require.Equal(t, "Balance ok", string(s.Data))
}

func TestTicketsBinaryRoundTrip(t *testing.T) {
	tickets := callback.BurnTickets{
		{Hash: "0xabc", Nonce: 1},
		{Hash: "", Nonce: -7},
		{Hash: "ħash", Nonce: 1 << 40},
	}
	buf, err := EncodeTickets(tickets)
	require.NoError(t, err)

	got, err := DecodeTickets(buf)
	require.NoError(t, err)
	require.Equal(t, tickets, got)

	empty, err := EncodeTickets(nil)
	require.NoError(t, err)
	got, err = DecodeTickets(empty)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = DecodeTickets(nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTicketsJSON(t *testing.T) {
	got, err := DecodeTickets([]byte(` [{"hash":"h1","nonce":3},{"hash":"h2","nonce":4}]`))
	require.NoError(t, err)
	require.Equal(t, callback.BurnTickets{{Hash: "h1", Nonce: 3}, {Hash: "h2", Nonce: 4}}, got)

	_, err = DecodeTickets([]byte(`[{"hash":`))
	require.ErrorIs(t, err, ErrTickets)
}

func TestTicketsMalformed(t *testing.T) {
	good, err := EncodeTickets(callback.BurnTickets{{Hash: "abc", Nonce: 9}})
	require.NoError(t, err)

	cases := map[string][]byte{
		"short count":    {0, 0},
		"negative count": {0xff, 0xff, 0xff, 0xff},
		"huge count":     {0x00, 0x10, 0x00, 0x00, 1, 2, 3},
		"truncated":      good[:len(good)-1],
		"trailing":       append(append([]byte{}, good...), 0),
		"bad hash len":   {0, 0, 0, 1, 0x7f, 0xff, 0xff, 0xff, 0, 0, 0, 0, 0, 0, 0, 0},
	}
	for name, buf := range cases {
		_, err := DecodeTickets(buf)
		require.Error(t, err, name)
	}

	bad := append([]byte{}, good...)
	bad[8] = 0xff
	_, err = DecodeTickets(bad)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestLiftBalance(t *testing.T) {
	env := Envelope{
		Ref:    5,
		Kind:   callback.KindBalanceAvailable,
		Fields: []Value{Int(0), Int(1000), String("ok")},
	}
	args, err := Lift(env)
	require.NoError(t, err)
	require.Equal(t, callback.StatusSuccess, args.Status)
	require.Equal(t, int64(1000), args.Value)
	require.Equal(t, "ok", args.Info)
}

func TestLiftErrors(t *testing.T) {
	_, err := Lift(Envelope{Kind: callback.KindInvalid})
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = Lift(Envelope{Kind: callback.KindSetupComplete, Fields: []Value{Int(0)}})
	require.ErrorIs(t, err, ErrArity)

	_, err = Lift(Envelope{Kind: callback.KindSetupComplete, Fields: []Value{String("0"), String("")}})
	require.ErrorIs(t, err, ErrFieldType)

	_, err = Lift(Envelope{Kind: callback.KindSetupComplete, Fields: []Value{Int(1 << 40), String("")}})
	require.ErrorIs(t, err, ErrFieldType)

	_, err = Lift(Envelope{
		Kind:   callback.KindWalletCreateComplete,
		Fields: []Value{Int(0), Str(NativeString{Data: []byte{0xff}}), String("")},
	})
	require.ErrorIs(t, err, ErrEncoding)

	_, err = Lift(Envelope{
		Kind:   callback.KindBurnTicketsAvailable,
		Fields: []Value{Int(0), Buf([]byte{1, 2, 3}), String("")},
	})
	require.ErrorIs(t, err, ErrTickets)
}

func TestLowerThenLiftEveryKind(t *testing.T) {
	args := Args{
		Status:  callback.StatusNetworkError,
		Op:      callback.OpGetLockedTokens,
		Value:   -42,
		Info:    "información",
		Err:     "erreur ✗",
		Wallet:  `{"client_id":"c"}`,
		Tickets: callback.BurnTickets{{Hash: "h", Nonce: 2}},
	}
	for _, kind := range callback.Kinds {
		schema, ok := SchemaOf(kind)
		require.True(t, ok)
		require.Equal(t, kind, schema.Kind)

		env, err := Lower(7, kind, args, ModifiedUTF8)
		require.NoError(t, err)
		require.Len(t, env.Fields, len(schema.Fields))

		got, err := Lift(env)
		require.NoError(t, err, "%v", kind)
		for _, f := range schema.Fields {
			switch f.Role {
			case RoleStatus:
				require.Equal(t, args.Status, got.Status)
			case RoleOp:
				require.Equal(t, args.Op, got.Op)
			case RoleValue:
				require.Equal(t, args.Value, got.Value)
			case RoleInfo:
				require.Equal(t, args.Info, got.Info)
			case RoleErr:
				require.Equal(t, args.Err, got.Err)
			case RoleWallet:
				require.Equal(t, args.Wallet, got.Wallet)
			case RoleTickets:
				require.Equal(t, args.Tickets, got.Tickets)
			}
		}
	}
}

func TestFailurePutsMessageInKindSlot(t *testing.T) {
	cause := errors.New("boom")

	a := Failure(callback.KindBalanceAvailable, cause)
	require.Equal(t, callback.StatusError, a.Status)
	require.Equal(t, "boom", a.Info)
	require.Empty(t, a.Err)

	a = Failure(callback.KindWalletCreateComplete, cause)
	require.Equal(t, "boom", a.Err)
	require.Empty(t, a.Info)

	a = Failure(callback.KindInfoAvailable, nil)
	require.Equal(t, callback.StatusError, a.Status)
}

type recorder struct {
	calls []string
}

func (r *recorder) OnBalanceAvailable(status int, value int64, info string) {
	r.calls = append(r.calls, "balance")
}

func (r *recorder) OnNonceAvailable(status int, nonce int64, info string) {
	r.calls = append(r.calls, "nonce")
}

func TestInvoke(t *testing.T) {
	r := &recorder{}
	require.NoError(t, Invoke(r, callback.KindBalanceAvailable, Args{}))
	require.NoError(t, Invoke(r, callback.KindMintNonceAvailable, Args{}))
	require.NoError(t, Invoke(r, callback.KindNonceAvailable, Args{}))
	require.Equal(t, []string{"balance", "balance", "nonce"}, r.calls)

	require.ErrorIs(t, Invoke(r, callback.KindSetupComplete, Args{}), ErrTargetType)
	require.ErrorIs(t, Invoke(r, callback.KindInvalid, Args{}), ErrUnknownKind)

	stub := &callback.BurnTicketsStub{}
	tickets := callback.BurnTickets{{Hash: "a", Nonce: 1}}
	require.NoError(t, Invoke(stub, callback.KindBurnTicketsAvailable, Args{Tickets: tickets, Info: "i"}))
	require.Equal(t, tickets, stub.Value)
	require.Equal(t, "i", stub.Info)
}
