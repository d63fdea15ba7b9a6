package envconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	Debug = 0 // Reset whatever was loaded in init()
	t.Setenv("HTK2S3_DEBUG", "")
	LoadConfig()
	require.Equal(t, 0, Debug)
	t.Setenv("HTK2S3_DEBUG", "false")
	LoadConfig()
	require.Equal(t, 0, Debug)
	t.Setenv("HTK2S3_DEBUG", "true")
	LoadConfig()
	require.Equal(t, 1, Debug)
	t.Setenv("HTK2S3_DEBUG", "2")
	LoadConfig()
	require.Equal(t, 2, Debug)
	t.Setenv("HTK2S3_DEBUG", "verbose")
	LoadConfig()
	require.Equal(t, 1, Debug)
}

func TestSilencePhone(t *testing.T) {
	cases := map[string]struct {
		value  string
		expect string
	}{
		"empty":         {"", "sil"},
		"set":           {"SIL", "SIL"},
		"extra space":   {" sp ", "sp"},
		"extra quotes":  {"\"h#\"", "h#"},
		"single quotes": {"'pau'", "pau"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("HTK2S3_SILENCE_PHONE", tt.value)
			LoadConfig()
			assert.Equal(t, tt.expect, SilencePhone)
		})
	}
}

func TestBool(t *testing.T) {
	cases := map[string]struct {
		value  string
		expect bool
	}{
		"empty":   {"", false},
		"true":    {"true", true},
		"one":     {"1", true},
		"false":   {"false", false},
		"quoted":  {"'true'", true},
		"invalid": {"sometimes", false},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("HTK2S3_SEQUENTIAL", tt.value)
			t.Setenv("HTK2S3_NOPROGRESS", tt.value)
			LoadConfig()
			assert.Equal(t, tt.expect, Sequential)
			assert.Equal(t, tt.expect, NoProgress)
		})
	}
}

func TestValues(t *testing.T) {
	t.Setenv("HTK2S3_DEBUG", "1")
	t.Setenv("HTK2S3_SILENCE_PHONE", "sp")
	LoadConfig()

	vals := Values()
	assert.Equal(t, "1", vals["HTK2S3_DEBUG"])
	assert.Equal(t, "sp", vals["HTK2S3_SILENCE_PHONE"])
	assert.Equal(t, "false", vals["HTK2S3_SEQUENTIAL"])
	assert.Len(t, vals, len(AsMap()))
}
