//go:build ios || android || !(amd64 || arm64)

package zcnbridge

// Init always fails: purego cannot load libzcncore on this platform.
func Init(path string) error {
	return ErrUnsupported
}

// IsLoaded always returns false on this platform.
func IsLoaded() bool {
	return false
}

// Version always returns "" on this platform.
func Version() string {
	return ""
}

// Open always fails on this platform. Use NewClient with another Backend.
func Open(config ClientConfig, opts ...Option) (*Client, error) {
	return nil, ErrUnsupported
}
