package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"

	"voxscene/pkg/pcm"
)

const STTSampleRate = 16000

type Options struct {
	// MaxDuration caps the decoded audio, measured at the file's own rate.
	MaxDuration time.Duration
}

// LoadFile decodes an audio file into a pcm.SampleBuffer at its native format.
// Supported: wav, mp3, ogg (vorbis, then opus).
func LoadFile(_ context.Context, path string, opt Options) (pcm.SampleBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return pcm.SampleBuffer{}, err
	}
	defer f.Close()

	var buf pcm.SampleBuffer
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		buf, err = decodeWAVReader(f)
	case ".mp3":
		buf, err = decodeMP3(f)
	case ".ogg", ".oga":
		buf, err = decodeOgg(f)
	default:
		// Quick sniff
		br := bufio.NewReader(f)
		magic, _ := br.Peek(4)
		_, _ = f.Seek(0, io.SeekStart)
		switch string(magic) {
		case "RIFF":
			buf, err = decodeWAVReader(f)
		case "OggS":
			buf, err = decodeOgg(f)
		default:
			return pcm.SampleBuffer{}, fmt.Errorf("unsupported format: %s (supported: wav/mp3/ogg)", ext)
		}
	}
	if err != nil {
		return pcm.SampleBuffer{}, err
	}

	return buf.Truncate(opt.MaxDuration), nil
}

// ToMono16k downmixes and resamples buf into the layout whisper expects.
func ToMono16k(buf pcm.SampleBuffer) []float32 {
	x := downmixInterleaved(buf.Samples, buf.Channels)
	return resampleLinear(x, buf.SampleRate, STTSampleRate)
}

func decodeWAVReader(r io.Reader) (pcm.SampleBuffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return pcm.SampleBuffer{}, err
	}
	return pcm.DecodeWAV(data)
}

func decodeMP3(r io.Reader) (pcm.SampleBuffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return pcm.SampleBuffer{}, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return pcm.SampleBuffer{}, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return pcm.SampleBuffer{}, err
	}

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	// mp3 decoder always outputs stereo
	return pcm.SampleBuffer{Samples: int16SliceToFloat32(ints), Channels: 2, SampleRate: sr}, nil
}

func decodeOgg(f *os.File) (pcm.SampleBuffer, error) {
	buf, err := decodeOggVorbis(f)
	if err == nil {
		return buf, nil
	}
	if _, e2 := f.Seek(0, io.SeekStart); e2 != nil {
		return pcm.SampleBuffer{}, fmt.Errorf("cannot decode ogg as vorbis: %w", err)
	}
	buf, e3 := decodeOggOpus(f)
	if e3 != nil {
		return pcm.SampleBuffer{}, fmt.Errorf("cannot decode ogg as vorbis (%v) or opus: %w", err, e3)
	}
	return buf, nil
}

func decodeOggVorbis(r io.Reader) (pcm.SampleBuffer, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return pcm.SampleBuffer{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return pcm.SampleBuffer{}, errors.New("invalid ogg/vorbis stream")
	}
	return pcm.SampleBuffer{Samples: samples, Channels: format.Channels, SampleRate: format.SampleRate}, nil
}

func decodeOggOpus(rs io.ReadSeeker) (pcm.SampleBuffer, error) {
	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return pcm.SampleBuffer{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// opus always decodes at 48k
	var (
		samples []float32
		buf     = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf) // n = samples per channel
		if n > 0 {
			samples = append(samples, int16SliceToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return pcm.SampleBuffer{}, err
		}
	}

	return pcm.SampleBuffer{Samples: samples, Channels: ch, SampleRate: 48000}, nil
}

// helpers

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || inSR <= 0 || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}
