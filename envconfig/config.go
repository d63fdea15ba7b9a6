package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// Set via HTK2S3_DEBUG in the environment; 1 logs debug, 2 also traces the parser
	Debug int
	// Set via HTK2S3_SILENCE_PHONE in the environment
	SilencePhone string
	// Set via HTK2S3_SEQUENTIAL in the environment
	Sequential bool
	// Set via HTK2S3_NOPROGRESS in the environment
	NoProgress bool
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"HTK2S3_DEBUG":         {"HTK2S3_DEBUG", Debug, "Show additional debug information (e.g. HTK2S3_DEBUG=1, 2 for parser traces)"},
		"HTK2S3_SILENCE_PHONE": {"HTK2S3_SILENCE_PHONE", SilencePhone, "Base phone written with the filler attribute (default \"sil\")"},
		"HTK2S3_SEQUENTIAL":    {"HTK2S3_SEQUENTIAL", Sequential, "Write output files one at a time"},
		"HTK2S3_NOPROGRESS":    {"HTK2S3_NOPROGRESS", NoProgress, "Do not show the progress spinner"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

// LoadConfig reads the settings from the environment. It is called again
// after a .env file has been loaded.
func LoadConfig() {
	Debug = 0
	if debug := clean("HTK2S3_DEBUG"); debug != "" {
		if n, err := strconv.Atoi(debug); err == nil {
			Debug = n
		} else if b, err := strconv.ParseBool(debug); err == nil {
			if b {
				Debug = 1
			}
		} else {
			Debug = 1
		}
	}

	SilencePhone = "sil"
	if s := clean("HTK2S3_SILENCE_PHONE"); s != "" {
		SilencePhone = s
	}

	Sequential = parseBool("HTK2S3_SEQUENTIAL")
	NoProgress = parseBool("HTK2S3_NOPROGRESS")
}

func parseBool(key string) bool {
	s := clean(key)
	if s == "" {
		return false
	}

	b, err := strconv.ParseBool(s)
	if err != nil {
		slog.Error("invalid setting, ignoring", key, s, "error", err)
		return false
	}

	return b
}
