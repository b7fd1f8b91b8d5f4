package zcnbridge

import (
	"errors"
	"time"

	flag "github.com/spf13/pflag"
)

type ClientConfig struct {
	// Timeout bounds the synchronous helpers when their context has no deadline.
	Timeout      time.Duration `koanf:"timeout"`
	LockOSThread bool          `koanf:"lock-os-thread"`
	LibraryPath  string        `koanf:"library-path"`
}

var DefaultClientConfig = ClientConfig{
	Timeout:      30 * time.Second,
	LockOSThread: true,
	LibraryPath:  "",
}

func ClientConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Duration(prefix+".timeout", DefaultClientConfig.Timeout, "timeout of synchronous wallet operations whose context has no deadline (0 waits forever)")
	f.Bool(prefix+".lock-os-thread", DefaultClientConfig.LockOSThread, "pin callbacks to the native thread that delivered them")
	f.String(prefix+".library-path", DefaultClientConfig.LibraryPath, "path of libzcncore (searched for when empty)")
}

func (c *ClientConfig) Validate() error {
	if c.Timeout < 0 {
		return errors.New("zcnbridge: timeout must not be negative")
	}
	return nil
}
