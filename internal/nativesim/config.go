package nativesim

import (
	"time"

	flag "github.com/spf13/pflag"

	"github.com/obinnaokechukwu/zcnbridge/marshal"
)

// Config controls how the simulated core completes operations.
type Config struct {
	Latency     time.Duration `koanf:"latency"`
	Jitter      time.Duration `koanf:"jitter"`
	Duplicates  int           `koanf:"duplicates"`
	Encoding    string        `koanf:"encoding"`
	TicketsJSON bool          `koanf:"tickets-json"`
}

var DefaultConfig = Config{
	Latency:     5 * time.Millisecond,
	Jitter:      0,
	Duplicates:  0,
	Encoding:    "utf8",
	TicketsJSON: false,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Duration(prefix+".latency", DefaultConfig.Latency, "delay before an operation completes")
	f.Duration(prefix+".jitter", DefaultConfig.Jitter, "random extra delay added to each completion")
	f.Int(prefix+".duplicates", DefaultConfig.Duplicates, "extra deliveries of every completion")
	f.String(prefix+".encoding", DefaultConfig.Encoding, "string encoding of completions (utf8, mutf8 or utf16le)")
	f.Bool(prefix+".tickets-json", DefaultConfig.TicketsJSON, "deliver burn tickets as sharder JSON instead of the binary list")
}

// StringEncoding resolves the configured string encoding.
func (c *Config) StringEncoding() (marshal.Encoding, error) {
	switch c.Encoding {
	case "", "utf8":
		return marshal.UTF8, nil
	case "mutf8":
		return marshal.ModifiedUTF8, nil
	case "utf16le":
		return marshal.UTF16LE, nil
	default:
		return 0, ErrConfig
	}
}
