//go:build !ios && !android && (amd64 || arm64)

// Package platform names the native wallet core library for the running
// operating system.
package platform

import (
	"fmt"
	"runtime"
	"unsafe"
)

// CoreLibrary is the base name of the native wallet core.
const CoreLibrary = "zcncore"

// Is64Bit indicates whether the platform is 64-bit.
// purego callbacks are only supported on 64-bit platforms.
const Is64Bit = unsafe.Sizeof(uintptr(0)) == 8

// LibraryExtension is the file extension for shared libraries on this platform.
var LibraryExtension string

// LibraryPrefix is the prefix for shared library names on this platform.
var LibraryPrefix string

func init() {
	switch runtime.GOOS {
	case "darwin":
		LibraryExtension = ".dylib"
		LibraryPrefix = "lib"
	case "windows":
		LibraryExtension = ".dll"
		LibraryPrefix = ""
	default:
		LibraryExtension = ".so"
		LibraryPrefix = "lib"
	}
}

// FormatLibraryName returns the platform-specific library filename.
// If version is 0, returns the unversioned library name.
//
// Examples:
//   - Linux:   FormatLibraryName("zcncore", 1) -> "libzcncore.so.1"
//   - macOS:   FormatLibraryName("zcncore", 1) -> "libzcncore.1.dylib"
//   - Windows: FormatLibraryName("zcncore", 1) -> "zcncore-1.dll"
func FormatLibraryName(name string, version int) string {
	if version <= 0 {
		return LibraryPrefix + name + LibraryExtension
	}
	switch runtime.GOOS {
	case "darwin":
		return fmt.Sprintf("%s%s.%d%s", LibraryPrefix, name, version, LibraryExtension)
	case "windows":
		return fmt.Sprintf("%s%s-%d%s", LibraryPrefix, name, version, LibraryExtension)
	default:
		return fmt.Sprintf("%s%s%s.%d", LibraryPrefix, name, LibraryExtension, version)
	}
}

// LibraryPathEnv returns the environment variable the dynamic loader reads
// extra search directories from.
func LibraryPathEnv() string {
	switch runtime.GOOS {
	case "darwin":
		return "DYLD_LIBRARY_PATH"
	case "windows":
		return "PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// String describes the platform for diagnostics, e.g. "linux/amd64".
func String() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
