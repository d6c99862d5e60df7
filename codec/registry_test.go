package codec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segbuf/segbuf/codec"
)

func TestRegistryCompressorsShrinkZeroedData(t *testing.T) {
	data := make([]byte, 10000)

	for id, comp := range codec.ByHeaderID {
		var compressed bytes.Buffer

		require.NoError(t, comp.Compress(&compressed, bytes.NewReader(data)), "header %x", id)
		require.Less(t, compressed.Len(), len(data), "header %x", id)

		var decompressed bytes.Buffer
		require.NoError(t, comp.Decompress(&decompressed, bytes.NewReader(compressed.Bytes()), true))
		require.Equal(t, data, decompressed.Bytes())
	}
}

func TestRegistryCompressorsRejectForeignFormat(t *testing.T) {
	data := []byte("mismatched format data, repeated ")

	var deflated bytes.Buffer
	require.NoError(t, codec.ByHeaderID[codec.HeaderIDDeflate].Compress(&deflated, bytes.NewReader(bytes.Repeat(data, 50))))

	var out bytes.Buffer
	err := codec.ByHeaderID[codec.HeaderIDGzip].Decompress(&out, bytes.NewReader(deflated.Bytes()), true)
	require.Error(t, err)
}
