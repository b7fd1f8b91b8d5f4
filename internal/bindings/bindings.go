//go:build !ios && !android && (amd64 || arm64)

// Package bindings loads the native wallet core (libzcncore) and registers its
// C entry points using purego.
//
// Operations are started with a reference number and complete later by
// calling one of the completion functions installed with SetCallback. Object
// accessors and callback forwarding are optional: older builds of the core do
// not export them, and the functions report ErrSymbolMissing.
package bindings

import (
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/internal/platform"
	"github.com/obinnaokechukwu/zcnbridge/marshal"
)

// ErrNotLoaded is returned when core functions are called before Load.
var ErrNotLoaded = errors.New("zcnbridge: wallet core not loaded; call zcnbridge.Init() first")

// ErrLibraryNotFound is returned when the core library cannot be found.
var ErrLibraryNotFound = errors.New("zcnbridge: wallet core library not found")

// ErrSymbolMissing is returned when the loaded core lacks an optional entry point.
var ErrSymbolMissing = errors.New("zcnbridge: wallet core does not export symbol")

// ErrStartFailed is returned when the core refuses to start an operation.
var ErrStartFailed = errors.New("zcnbridge: wallet core failed to start operation")

// SearchDirEnv names a directory searched before the platform defaults.
const SearchDirEnv = "ZCNBRIDGE_LIB_DIR"

var (
	libCore  uintptr
	libPath  string
	loaded   bool
	loadOnce sync.Once
	loadErr  error
)

// Required entry points. Each start function returns 0 when the operation
// was accepted and will complete through a callback.
var (
	zcnSetCallback    func(kind int32, fn uintptr) int32
	zcnGetBalance     func(ref int32) int32
	zcnGetMintNonce   func(ref int32) int32
	zcnGetNonce       func(ref int32) int32
	zcnGetInfo        func(op, ref int32) int32
	zcnSetupAuth      func(ref int32) int32
	zcnCreateWallet   func(ref int32) int32
	zcnGetBurnTickets func(ethAddress string, startNonce int64, ref int32) int32
)

// Optional entry points.
var (
	zcnVersion         func() string
	zcnObjectGetString func(ref int64, field string) unsafe.Pointer
	zcnObjectGetInt64  func(ref int64, field string, out *int64) int32
	zcnObjectRelease   func(ref int64)
	zcnStringFree      func(p unsafe.Pointer)
	zcnCallbackForward func(ref int64, kind, status, op int32, value int64, s1, s2 string, buf *byte, bufLen int32) int32
)

// IsLoaded returns true if the core has been successfully loaded.
func IsLoaded() bool {
	return loaded
}

// Path returns the file the core was loaded from.
func Path() string {
	return libPath
}

// Load loads the core and registers all function bindings. An empty path
// searches LibrarySearchPaths. It is safe to call multiple times; only the
// first call has any effect.
func Load(path string) error {
	loadOnce.Do(func() {
		loadErr = doLoad(path)
		if loadErr == nil {
			loaded = true
		}
	})
	return loadErr
}

func doLoad(path string) error {
	var err error
	if path != "" {
		libCore, err = tryOpen(path)
		if err != nil {
			return errors.Wrapf(ErrLibraryNotFound, "%s: %v", path, err)
		}
		libPath = path
	} else {
		libCore, libPath, err = loadLibrary(platform.CoreLibrary, []int{1})
		if err != nil {
			return err
		}
	}

	if err := registerRequired(); err != nil {
		return err
	}

	registerOptionalLibFunc(&zcnVersion, libCore, "zcn_version")
	registerOptionalLibFunc(&zcnObjectGetString, libCore, "zcn_object_get_string")
	registerOptionalLibFunc(&zcnObjectGetInt64, libCore, "zcn_object_get_int64")
	registerOptionalLibFunc(&zcnObjectRelease, libCore, "zcn_object_release")
	registerOptionalLibFunc(&zcnStringFree, libCore, "zcn_string_free")
	registerOptionalLibFunc(&zcnCallbackForward, libCore, "zcn_callback_forward")
	return nil
}

func registerRequired() (err error) {
	defer func() {
		// purego.RegisterLibFunc panics if the symbol is missing
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrSymbolMissing, "%v", r)
		}
	}()
	purego.RegisterLibFunc(&zcnSetCallback, libCore, "zcn_set_callback")
	purego.RegisterLibFunc(&zcnGetBalance, libCore, "zcn_get_balance")
	purego.RegisterLibFunc(&zcnGetMintNonce, libCore, "zcn_get_mint_nonce")
	purego.RegisterLibFunc(&zcnGetNonce, libCore, "zcn_get_nonce")
	purego.RegisterLibFunc(&zcnGetInfo, libCore, "zcn_get_info")
	purego.RegisterLibFunc(&zcnSetupAuth, libCore, "zcn_setup_auth")
	purego.RegisterLibFunc(&zcnCreateWallet, libCore, "zcn_create_wallet")
	purego.RegisterLibFunc(&zcnGetBurnTickets, libCore, "zcn_get_not_processed_burn_tickets")
	return nil
}

func registerOptionalLibFunc(fptr any, handle uintptr, name string) {
	defer func() {
		_ = recover()
	}()
	purego.RegisterLibFunc(fptr, handle, name)
}

// loadLibrary attempts to load a library by trying versioned names in every
// search path, then lets the system loader find it.
func loadLibrary(name string, versions []int) (uintptr, string, error) {
	candidates := func(dir string) []string {
		var out []string
		for _, ver := range versions {
			out = append(out, filepath.Join(dir, platform.FormatLibraryName(name, ver)))
		}
		return append(out, filepath.Join(dir, platform.FormatLibraryName(name, 0)))
	}
	for _, dir := range LibrarySearchPaths() {
		for _, p := range candidates(dir) {
			if lib, err := tryOpen(p); err == nil {
				return lib, p, nil
			}
		}
	}
	for _, p := range candidates("") {
		if lib, err := tryOpen(p); err == nil {
			return lib, p, nil
		}
	}
	return 0, "", errors.Wrapf(ErrLibraryNotFound, "%s on %s", name, platform.String())
}

func tryOpen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// FindLibrary searches for a library and returns its full path without loading it.
func FindLibrary(name string, versions []int) (string, error) {
	for _, dir := range LibrarySearchPaths() {
		for _, ver := range append(append([]int{}, versions...), 0) {
			p := filepath.Join(dir, platform.FormatLibraryName(name, ver))
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", errors.Wrapf(ErrLibraryNotFound, "%s on %s", name, platform.String())
}

// LibrarySearchPaths returns the directories searched for the core, in order:
// $ZCNBRIDGE_LIB_DIR, the loader path variable, the executable directory and
// the platform defaults.
func LibrarySearchPaths() []string {
	var paths []string
	if dir := os.Getenv(SearchDirEnv); dir != "" {
		paths = append(paths, dir)
	}
	if env := os.Getenv(platform.LibraryPathEnv()); env != "" {
		paths = append(paths, filepath.SplitList(env)...)
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Dir(exe))
	}
	switch platform.LibraryExtension {
	case ".dylib":
		paths = append(paths, "/opt/homebrew/lib", "/usr/local/lib")
	case ".so":
		paths = append(paths,
			"/usr/local/lib",
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/lib",
		)
	}
	return paths
}

// Version returns the core's version string, or "" when unknown.
func Version() string {
	if !loaded || zcnVersion == nil {
		return ""
	}
	return zcnVersion()
}

// SetCallback installs fn, a purego callback, as the completion function for kind.
func SetCallback(kind callback.Kind, fn uintptr) error {
	if !loaded {
		return ErrNotLoaded
	}
	if rc := zcnSetCallback(int32(kind), fn); rc != 0 {
		return errors.Wrapf(ErrStartFailed, "zcn_set_callback(%v): code %d", kind, rc)
	}
	return nil
}

func start(name string, rc int32) error {
	if rc != 0 {
		return errors.Wrapf(ErrStartFailed, "%s: code %d", name, rc)
	}
	return nil
}

// GetBalance starts a balance query completing with ref.
func GetBalance(ref int32) error {
	if !loaded {
		return ErrNotLoaded
	}
	return start("zcn_get_balance", zcnGetBalance(ref))
}

// GetMintNonce starts a mint nonce query completing with ref.
func GetMintNonce(ref int32) error {
	if !loaded {
		return ErrNotLoaded
	}
	return start("zcn_get_mint_nonce", zcnGetMintNonce(ref))
}

// GetNonce starts a nonce query completing with ref.
func GetNonce(ref int32) error {
	if !loaded {
		return ErrNotLoaded
	}
	return start("zcn_get_nonce", zcnGetNonce(ref))
}

// GetInfo starts the info query op completing with ref.
func GetInfo(op int, ref int32) error {
	if !loaded {
		return ErrNotLoaded
	}
	return start("zcn_get_info", zcnGetInfo(int32(op), ref))
}

// SetupAuth starts split-key auth setup completing with ref.
func SetupAuth(ref int32) error {
	if !loaded {
		return ErrNotLoaded
	}
	return start("zcn_setup_auth", zcnSetupAuth(ref))
}

// CreateWallet starts wallet creation completing with ref.
func CreateWallet(ref int32) error {
	if !loaded {
		return ErrNotLoaded
	}
	return start("zcn_create_wallet", zcnCreateWallet(ref))
}

// GetNotProcessedBurnTickets starts a burn ticket query completing with ref.
func GetNotProcessedBurnTickets(ethAddress string, startNonce int64, ref int32) error {
	if !loaded {
		return ErrNotLoaded
	}
	return start("zcn_get_not_processed_burn_tickets", zcnGetBurnTickets(ethAddress, startNonce, ref))
}

// ObjectString reads a string field of a native object. The native copy is
// freed before returning.
func ObjectString(ref int64, field string) (string, error) {
	if !loaded {
		return "", ErrNotLoaded
	}
	if zcnObjectGetString == nil || zcnStringFree == nil {
		return "", errors.Wrap(ErrSymbolMissing, "zcn_object_get_string")
	}
	p := zcnObjectGetString(ref, field)
	if p == nil {
		return "", errors.Errorf("zcnbridge: object %d has no string field %q", ref, field)
	}
	defer zcnStringFree(p)
	return marshal.Decode(marshal.FromC((*byte)(p)))
}

// ObjectInt64 reads an integer field of a native object.
func ObjectInt64(ref int64, field string) (int64, error) {
	if !loaded {
		return 0, ErrNotLoaded
	}
	if zcnObjectGetInt64 == nil {
		return 0, errors.Wrap(ErrSymbolMissing, "zcn_object_get_int64")
	}
	var v int64
	if rc := zcnObjectGetInt64(ref, field, &v); rc != 0 {
		return 0, errors.Errorf("zcnbridge: object %d has no int64 field %q (code %d)", ref, field, rc)
	}
	return v, nil
}

// ReleaseObject drops the native reference ref.
func ReleaseObject(ref int64) error {
	if !loaded {
		return ErrNotLoaded
	}
	if zcnObjectRelease == nil {
		return errors.Wrap(ErrSymbolMissing, "zcn_object_release")
	}
	zcnObjectRelease(ref)
	return nil
}

// ForwardArgs is the flat C shape of a forwarded completion: the integer
// fields, at most two strings in schema order and the ticket buffer.
type ForwardArgs struct {
	Status int32
	Op     int32
	Value  int64
	S1, S2 string
	Buf    []byte
}

// Flatten maps env onto the flat forwarding shape. Strings must already be
// in modified UTF-8 so that they carry no interior NUL.
func Flatten(env marshal.Envelope) (ForwardArgs, error) {
	var fa ForwardArgs
	schema, ok := marshal.SchemaOf(env.Kind)
	if !ok {
		return fa, errors.Wrapf(marshal.ErrUnknownKind, "%v", env.Kind)
	}
	if len(env.Fields) != len(schema.Fields) {
		return fa, errors.Wrapf(marshal.ErrArity, "%v", env.Kind)
	}
	strs := 0
	for i, f := range schema.Fields {
		v := env.Fields[i]
		switch f.Role {
		case marshal.RoleStatus:
			fa.Status = int32(v.Int)
		case marshal.RoleOp:
			fa.Op = int32(v.Int)
		case marshal.RoleValue:
			fa.Value = v.Int
		case marshal.RoleTickets:
			fa.Buf = v.Buf
		default:
			if v.Str.Encoding != marshal.ModifiedUTF8 {
				return fa, errors.Wrapf(marshal.ErrEncoding, "%v.%s: forwarded strings must be %v", env.Kind, f.Name, marshal.ModifiedUTF8)
			}
			if strs == 0 {
				fa.S1 = string(v.Str.Data)
			} else {
				fa.S2 = string(v.Str.Data)
			}
			strs++
		}
	}
	return fa, nil
}

// Forward hands a completion to the native callback object ref.
func Forward(ref int64, env marshal.Envelope) error {
	if !loaded {
		return ErrNotLoaded
	}
	if zcnCallbackForward == nil {
		return errors.Wrap(ErrSymbolMissing, "zcn_callback_forward")
	}
	fa, err := Flatten(env)
	if err != nil {
		return err
	}
	var buf *byte
	if len(fa.Buf) > 0 {
		buf = &fa.Buf[0]
	}
	rc := zcnCallbackForward(ref, int32(env.Kind), fa.Status, fa.Op, fa.Value, fa.S1, fa.S2, buf, int32(len(fa.Buf)))
	if rc != 0 {
		return errors.Errorf("zcnbridge: forwarding %v to object %d failed (code %d)", env.Kind, ref, rc)
	}
	return nil
}
