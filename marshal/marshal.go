// Package marshal converts completion payloads between their native
// representation and Go values.
//
// Every operation kind has a fixed field list (its Schema). Native code
// delivers an Envelope of typed primitive Values; Lift checks it against the
// schema, transcodes strings and decodes structured buffers into Args, and
// Invoke calls the kind's method on the callback target. Lower goes the other
// way for completions Go forwards to native callback objects.
package marshal

import (
	"errors"
	"fmt"
	"math"

	pkgerrors "github.com/pkg/errors"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/internal/handles"
)

var (
	// ErrEncoding indicates string data that is not valid in its declared encoding.
	ErrEncoding = errors.New("zcnbridge: string encoding conversion failed")

	// ErrArity indicates an envelope with the wrong number of fields.
	ErrArity = errors.New("zcnbridge: wrong number of payload fields")

	// ErrFieldType indicates a field of the wrong primitive type or range.
	ErrFieldType = errors.New("zcnbridge: unexpected payload field type")

	// ErrTickets indicates a malformed ticket list buffer.
	ErrTickets = errors.New("zcnbridge: malformed ticket list")

	// ErrUnknownKind indicates a kind with no schema.
	ErrUnknownKind = errors.New("zcnbridge: unknown operation kind")

	// ErrTargetType indicates a target that cannot receive the kind's completion.
	ErrTargetType = errors.New("zcnbridge: target does not implement callback")
)

// FieldType is the primitive type of a payload field on the wire.
type FieldType uint8

const (
	FieldInt FieldType = iota + 1
	FieldString
	FieldBuffer
)

func (t FieldType) String() string {
	switch t {
	case FieldInt:
		return "int"
	case FieldString:
		return "string"
	case FieldBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// Value is one native payload field.
type Value struct {
	Type FieldType
	Int  int64
	Str  NativeString
	Buf  []byte
}

// Int returns an integer field.
func Int(v int64) Value { return Value{Type: FieldInt, Int: v} }

// Str returns a string field.
func Str(s NativeString) Value { return Value{Type: FieldString, Str: s} }

// String returns a UTF-8 string field.
func String(s string) Value { return Str(Encode(s, UTF8)) }

// Buf returns a structured buffer field. b is not copied.
func Buf(b []byte) Value { return Value{Type: FieldBuffer, Buf: b} }

// Envelope is the raw result of one completed native operation.
type Envelope struct {
	Ref    handles.Handle
	Kind   callback.Kind
	Fields []Value
}

// Role names what a field means to the callback.
type Role uint8

const (
	RoleStatus Role = iota + 1
	RoleOp
	RoleValue
	RoleInfo
	RoleErr
	RoleWallet
	RoleTickets
)

func (r Role) wire() FieldType {
	switch r {
	case RoleStatus, RoleOp, RoleValue:
		return FieldInt
	case RoleTickets:
		return FieldBuffer
	default:
		return FieldString
	}
}

// Field is one entry of a schema.
type Field struct {
	Name string
	Role Role
}

// Schema is the fixed field list of one kind. Message is the string field a
// synthesized failure message is written to.
type Schema struct {
	Kind    callback.Kind
	Fields  []Field
	Message Role
}

var schemas = map[callback.Kind]Schema{
	callback.KindSetupComplete: {
		Fields:  []Field{{"status", RoleStatus}, {"err", RoleErr}},
		Message: RoleErr,
	},
	callback.KindBalanceAvailable: {
		Fields:  []Field{{"status", RoleStatus}, {"value", RoleValue}, {"info", RoleInfo}},
		Message: RoleInfo,
	},
	callback.KindInfoAvailable: {
		Fields:  []Field{{"op", RoleOp}, {"status", RoleStatus}, {"info", RoleInfo}, {"err", RoleErr}},
		Message: RoleErr,
	},
	callback.KindMintNonceAvailable: {
		Fields:  []Field{{"status", RoleStatus}, {"value", RoleValue}, {"info", RoleInfo}},
		Message: RoleInfo,
	},
	callback.KindNonceAvailable: {
		Fields:  []Field{{"status", RoleStatus}, {"nonce", RoleValue}, {"info", RoleInfo}},
		Message: RoleInfo,
	},
	callback.KindBurnTicketsAvailable: {
		Fields:  []Field{{"status", RoleStatus}, {"tickets", RoleTickets}, {"info", RoleInfo}},
		Message: RoleInfo,
	},
	callback.KindWalletCreateComplete: {
		Fields:  []Field{{"status", RoleStatus}, {"wallet", RoleWallet}, {"err", RoleErr}},
		Message: RoleErr,
	},
}

// SchemaOf returns the schema of kind.
func SchemaOf(kind callback.Kind) (Schema, bool) {
	s, ok := schemas[kind]
	s.Kind = kind
	return s, ok
}

// Args are the lifted Go values of a completion. Only the fields in the
// kind's schema are meaningful.
type Args struct {
	Status  callback.Status
	Op      int
	Value   int64
	Info    string
	Err     string
	Wallet  string
	Tickets callback.BurnTickets
}

// Lift converts env into Go values according to its kind's schema.
func Lift(env Envelope) (Args, error) {
	var args Args
	schema, ok := SchemaOf(env.Kind)
	if !ok {
		return args, pkgerrors.Wrapf(ErrUnknownKind, "%v", env.Kind)
	}
	if len(env.Fields) != len(schema.Fields) {
		return args, pkgerrors.Wrapf(ErrArity, "%v: got %d fields, want %d", env.Kind, len(env.Fields), len(schema.Fields))
	}
	for i, f := range schema.Fields {
		v := env.Fields[i]
		if v.Type != f.Role.wire() {
			return args, pkgerrors.Wrapf(ErrFieldType, "%v.%s: got %v, want %v", env.Kind, f.Name, v.Type, f.Role.wire())
		}
		if err := args.set(f.Role, v); err != nil {
			return args, pkgerrors.Wrapf(err, "%v.%s", env.Kind, f.Name)
		}
	}
	return args, nil
}

func (a *Args) set(role Role, v Value) error {
	switch role {
	case RoleStatus, RoleOp:
		if v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
			return pkgerrors.Wrapf(ErrFieldType, "%d out of int32 range", v.Int)
		}
		if role == RoleStatus {
			a.Status = callback.Status(v.Int)
		} else {
			a.Op = int(v.Int)
		}
	case RoleValue:
		a.Value = v.Int
	case RoleTickets:
		tickets, err := DecodeTickets(v.Buf)
		if err != nil {
			return err
		}
		a.Tickets = tickets
	default:
		s, err := Decode(v.Str)
		if err != nil {
			return err
		}
		switch role {
		case RoleInfo:
			a.Info = s
		case RoleErr:
			a.Err = s
		case RoleWallet:
			a.Wallet = s
		}
	}
	return nil
}

// Lower converts args into an envelope for kind, encoding strings with enc.
func Lower(ref handles.Handle, kind callback.Kind, args Args, enc Encoding) (Envelope, error) {
	schema, ok := SchemaOf(kind)
	if !ok {
		return Envelope{}, pkgerrors.Wrapf(ErrUnknownKind, "%v", kind)
	}
	env := Envelope{Ref: ref, Kind: kind, Fields: make([]Value, 0, len(schema.Fields))}
	for _, f := range schema.Fields {
		switch f.Role {
		case RoleStatus:
			env.Fields = append(env.Fields, Int(int64(args.Status)))
		case RoleOp:
			env.Fields = append(env.Fields, Int(int64(args.Op)))
		case RoleValue:
			env.Fields = append(env.Fields, Int(args.Value))
		case RoleTickets:
			buf, err := EncodeTickets(args.Tickets)
			if err != nil {
				return Envelope{}, err
			}
			env.Fields = append(env.Fields, Buf(buf))
		case RoleInfo:
			env.Fields = append(env.Fields, Str(Encode(args.Info, enc)))
		case RoleErr:
			env.Fields = append(env.Fields, Str(Encode(args.Err, enc)))
		case RoleWallet:
			env.Fields = append(env.Fields, Str(Encode(args.Wallet, enc)))
		}
	}
	return env, nil
}

// Failure returns the payload delivered in place of a completion that could
// not be marshalled: StatusError with the cause in the kind's message field.
func Failure(kind callback.Kind, cause error) Args {
	args := Args{Status: callback.StatusError}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	schema, _ := SchemaOf(kind)
	switch schema.Message {
	case RoleInfo:
		args.Info = msg
	default:
		args.Err = msg
	}
	return args
}

// Invoke calls the completion method of kind on target.
func Invoke(target any, kind callback.Kind, args Args) error {
	status := int(args.Status)
	switch kind {
	case callback.KindSetupComplete:
		if cb, ok := target.(callback.AuthCallback); ok {
			cb.OnSetupComplete(status, args.Err)
			return nil
		}
	case callback.KindBalanceAvailable:
		if cb, ok := target.(callback.GetBalanceCallback); ok {
			cb.OnBalanceAvailable(status, args.Value, args.Info)
			return nil
		}
	case callback.KindInfoAvailable:
		if cb, ok := target.(callback.GetInfoCallback); ok {
			cb.OnInfoAvailable(args.Op, status, args.Info, args.Err)
			return nil
		}
	case callback.KindMintNonceAvailable:
		if cb, ok := target.(callback.GetMintNonceCallback); ok {
			cb.OnBalanceAvailable(status, args.Value, args.Info)
			return nil
		}
	case callback.KindNonceAvailable:
		if cb, ok := target.(callback.GetNonceCallback); ok {
			cb.OnNonceAvailable(status, args.Value, args.Info)
			return nil
		}
	case callback.KindBurnTicketsAvailable:
		if cb, ok := target.(callback.GetNotProcessedZCNBurnTicketsCallback); ok {
			cb.OnBalanceAvailable(status, args.Tickets, args.Info)
			return nil
		}
	case callback.KindWalletCreateComplete:
		if cb, ok := target.(callback.WalletCallback); ok {
			cb.OnWalletCreateComplete(status, args.Wallet, args.Err)
			return nil
		}
	default:
		return pkgerrors.Wrapf(ErrUnknownKind, "%v", kind)
	}
	return pkgerrors.Wrapf(ErrTargetType, "%T as %v", target, kind)
}
