package audioconv

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxscene/pkg/pcm"
)

func TestToMono16kDownmixesAndResamples(t *testing.T) {
	buf := pcm.SampleBuffer{
		Samples:    []float32{0.2, 0.4, 0.2, 0.4, 0.2, 0.4, 0.2, 0.4},
		Channels:   2,
		SampleRate: 8000,
	}

	out := ToMono16k(buf)

	require.Len(t, out, 8)
	for _, s := range out {
		assert.InDelta(t, 0.3, s, 1e-6)
	}
}

func TestLoadFileCapsDurationAtNativeRate(t *testing.T) {
	wav, err := pcm.EncodeWAV(pcm.SampleBuffer{Samples: make([]float32, 48000*3), Channels: 1, SampleRate: 48000})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "long.wav")
	require.NoError(t, os.WriteFile(path, wav, 0o644))

	buf, err := LoadFile(t.Context(), path, Options{MaxDuration: 2 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, 48000, buf.SampleRate)
	assert.Equal(t, 96000, buf.Frames())
}

func TestLoadFileRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("just text"), 0o644))

	_, err := LoadFile(t.Context(), path, Options{})
	assert.Error(t, err)
}
