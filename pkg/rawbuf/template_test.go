package rawbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqstream/daqstream/pkg/errors"
)

func TestSubstituteKeyFormats(t *testing.T) {
	key := 4
	cases := []struct {
		tmpl string
		want string
	}{
		{"g{key}", "g4"},
		{"g{key:0>3d}", "g004"},
		{"g{key:3d}", "g  4"},
		{"g{key:_<3d}", "g4__"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		got, err := substitute(tc.tmpl, nil, &key, nil)
		require.NoError(t, err, tc.tmpl)
		assert.Equal(t, tc.want, got, tc.tmpl)
	}
}

func TestSubstituteKeywordsAndName(t *testing.T) {
	name := "GeEvent"
	got, err := substitute("{dir}/{file_key}_{name}.raw", map[string]string{
		"dir":      "/data",
		"file_key": "run7",
	}, nil, &name)
	require.NoError(t, err)
	assert.Equal(t, "/data/run7_GeEvent.raw", got)
}

func TestSubstituteDeferred(t *testing.T) {
	// {key} and {name} survive the keyword pass when unresolved
	got, err := substitute("{dir}/ch{key:0>2d}_{name}", map[string]string{"dir": "d"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "d/ch{key:0>2d}_{name}", got)
}

func TestSubstituteErrors(t *testing.T) {
	_, err := substitute("{oops}", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = substitute("{unterminated", nil, nil, nil)
	require.Error(t, err)

	key := 1
	_, err = substitute("{key:zzz}", nil, &key, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
