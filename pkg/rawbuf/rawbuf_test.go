package rawbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqstream/daqstream/pkg/errors"
	"github.com/daqstream/daqstream/pkg/store"
)

const routingJSON = `
{
  "GeEventDecoder" : {
    "g{key:0>3d}" : {
      "key_list" : [ [24,64] ],
      "out_stream" : "{datadir}/{file_key}_geds.raw:/geds"
    },
    "spms" : {
      "key_list" : [ [6,23] ],
      "out_stream" : "{datadir}/{file_key}_spms.raw"
    },
    "puls" : {
      "key_list" : [ 0 ],
      "out_stream" : "{datadir}/{file_key}_auxs.raw:/auxs"
    },
    "muvt" : {
      "key_list" : [ 1, 5 ],
      "out_stream" : "{datadir}/{file_key}_auxs.raw:/auxs"
    }
  },
  "*" : {
    "{name}" : {
      "key_list" : [ "*" ],
      "out_stream" : "{datadir}/{file_key}_others.raw"
    }
  }
}
`

var testKW = map[string]string{"datadir": "/data", "file_key": "run0"}

func buildTestLibrary(t *testing.T) *RawBufferLibrary {
	t.Helper()
	cfg, err := ParseRoutingConfig([]byte(routingJSON))
	require.NoError(t, err)
	lib, err := NewLibraryFromConfig(cfg, testKW)
	require.NoError(t, err)
	return lib
}

func TestLibraryFromConfig(t *testing.T) {
	lib := buildTestLibrary(t)

	list, ok := lib.List("GeEventDecoder")
	require.True(t, ok)

	// per-key template expands to one buffer per key
	rb, ok := list.BufferForKey(41)
	require.True(t, ok)
	assert.Equal(t, "g041", rb.OutName)
	assert.Equal(t, "/data/run0_geds.raw:/geds", rb.OutStream)

	// plain range binding shares one buffer across its keys
	spm6, ok := list.BufferForKey(6)
	require.True(t, ok)
	spm23, ok := list.BufferForKey(23)
	require.True(t, ok)
	assert.Same(t, spm6, spm23)
	assert.Equal(t, "spms", spm6.OutName)

	// individual keys
	muvt, ok := list.BufferForKey(5)
	require.True(t, ok)
	assert.Equal(t, "muvt", muvt.OutName)

	assert.True(t, lib.HasFallback())
}

func TestLibraryRebuildIdempotent(t *testing.T) {
	libA := buildTestLibrary(t)
	libB := buildTestLibrary(t)

	listA, _ := libA.List("GeEventDecoder")
	listB, _ := libB.List("GeEventDecoder")

	assert.Equal(t, listA.Keys(), listB.Keys())
	for _, key := range listA.Keys() {
		a, _ := listA.BufferForKey(key)
		b, _ := listB.BufferForKey(key)
		assert.Equal(t, a.OutName, b.OutName, "key %d", key)
		assert.Equal(t, a.OutStream, b.OutStream, "key %d", key)
	}
}

func TestOverlappingRangesFatalAtBuild(t *testing.T) {
	overlap := `
	{
	  "DecoderA" : {
	    "low"  : { "key_list" : [ [0,5] ], "out_stream" : "X" },
	    "high" : { "key_list" : [ [3,8] ], "out_stream" : "X" }
	  }
	}`
	cfg, err := ParseRoutingConfig([]byte(overlap))
	require.NoError(t, err)

	_, err = NewLibraryFromConfig(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestKeyPaddingEndToEnd(t *testing.T) {
	cfgJSON := `
	{
	  "DecoderA" : {
	    "g{key:0>3d}" : { "key_list" : [ [0,9] ], "out_stream" : "X" }
	  }
	}`
	cfg, err := ParseRoutingConfig([]byte(cfgJSON))
	require.NoError(t, err)
	lib, err := NewLibraryFromConfig(cfg, map[string]string{})
	require.NoError(t, err)

	list, ok := lib.List("DecoderA")
	require.True(t, ok)
	rb, ok := list.BufferForKey(4)
	require.True(t, ok)
	assert.Equal(t, "g004", rb.OutName)
}

func TestWildcardMaterialization(t *testing.T) {
	cfgJSON := `
	{
	  "DecoderA" : {
	    "ch{key:0>2d}" : { "key_list" : [ "*" ], "out_stream" : "out_{key}.raw" }
	  }
	}`
	cfg, err := ParseRoutingConfig([]byte(cfgJSON))
	require.NoError(t, err)
	lib, err := NewLibraryFromConfig(cfg, nil)
	require.NoError(t, err)

	list, _ := lib.List("DecoderA")
	require.True(t, list.HasWildcard())

	newStore := func() store.Store { return store.NewTable(8) }

	rb, err := list.Materialize(7, newStore)
	require.NoError(t, err)
	assert.Equal(t, "ch07", rb.OutName)
	assert.Equal(t, "out_7.raw", rb.OutStream)
	assert.NotNil(t, rb.Store)

	// second request reuses the same buffer, no duplicate
	again, err := list.Materialize(7, newStore)
	require.NoError(t, err)
	assert.Same(t, rb, again)

	count := 0
	for _, b := range list.Buffers {
		if !b.Wildcard {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestMaterializeDecoderFromFallback(t *testing.T) {
	lib := buildTestLibrary(t)

	list, err := lib.MaterializeDecoder("AuxTriggerDecoder")
	require.NoError(t, err)
	require.True(t, list.HasWildcard())

	rb, err := list.Materialize(3, nil)
	require.NoError(t, err)
	assert.Equal(t, "AuxTrigger", rb.OutName)
	assert.Equal(t, "/data/run0_others.raw", rb.OutStream)

	// the materialized list is installed in the library
	installed, ok := lib.List("AuxTriggerDecoder")
	require.True(t, ok)
	assert.Same(t, list, installed)
}

func TestDoubleWildcardRejected(t *testing.T) {
	list := NewRawBufferList()
	require.NoError(t, list.Add(&RawBuffer{OutName: "a", Wildcard: true}))
	err := list.Add(&RawBuffer{OutName: "b", Wildcard: true})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestBufferFillState(t *testing.T) {
	rb := &RawBuffer{Store: store.NewTable(4), FillMargin: 1}

	assert.False(t, rb.NearFull())
	rb.Loc = 3
	assert.True(t, rb.NearFull())
	assert.False(t, rb.Full())
	rb.Loc = 4
	assert.True(t, rb.Full())

	rb.Reset()
	assert.Equal(t, 0, rb.Loc)
}
