// Package pcm holds the recorded sample buffer and its WAV container codec.
package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/wav"
)

const (
	wavHeaderSize  = 44
	bytesPerSample = 2
	pcmFormat      = 1
	bitsPerSample  = 16
)

// SampleBuffer is a captured recording: interleaved samples in [-1, 1].
type SampleBuffer struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of samples per channel.
func (b SampleBuffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Truncate caps b at d of audio, measured at b's own sample rate.
// A non-positive d leaves b untouched.
func (b SampleBuffer) Truncate(d time.Duration) SampleBuffer {
	if d <= 0 || b.Channels <= 0 || b.SampleRate <= 0 {
		return b
	}
	frames := int(int64(b.SampleRate) * int64(d) / int64(time.Second))
	if n := frames * b.Channels; len(b.Samples) > n {
		b.Samples = b.Samples[:n]
	}
	return b
}

type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return "encode wav: " + e.Reason
}

// EncodeWAV renders buf as a canonical 16-bit linear PCM RIFF/WAVE container.
//
// Samples are scaled by 32767 and truncated toward zero; values outside
// [-1, 1] wrap around instead of saturating.
func EncodeWAV(buf SampleBuffer) ([]byte, error) {
	if len(buf.Samples) == 0 {
		return nil, &EncodingError{Reason: "empty sample buffer"}
	}
	if buf.Channels <= 0 {
		return nil, &EncodingError{Reason: fmt.Sprintf("invalid channel count %d", buf.Channels)}
	}
	if buf.SampleRate <= 0 {
		return nil, &EncodingError{Reason: fmt.Sprintf("invalid sample rate %d", buf.SampleRate)}
	}

	le := binary.LittleEndian
	out := make([]byte, wavHeaderSize, wavHeaderSize+len(buf.Samples)*bytesPerSample)

	copy(out[0:4], "RIFF")
	// out[4:8] is patched once the data is in place
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], pcmFormat)
	le.PutUint16(out[22:24], uint16(buf.Channels))
	le.PutUint32(out[24:28], uint32(buf.SampleRate))
	le.PutUint32(out[28:32], uint32(buf.SampleRate*buf.Channels*bytesPerSample))
	le.PutUint16(out[32:34], uint16(buf.Channels*bytesPerSample))
	le.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	// out[40:44] is patched once the data is in place

	for _, s := range buf.Samples {
		out = le.AppendUint16(out, uint16(sampleToPCM16(s)))
	}

	le.PutUint32(out[4:8], uint32(len(out)-8))
	le.PutUint32(out[40:44], uint32(len(out)-wavHeaderSize))

	return out, nil
}

func sampleToPCM16(s float32) int16 {
	return int16(int64(s * 32767))
}

// DecodeWAV parses a PCM container back into a SampleBuffer at its native
// channel count and sample rate.
func DecodeWAV(data []byte) (SampleBuffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return SampleBuffer{}, errors.New("invalid wav")
	}

	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return SampleBuffer{}, fmt.Errorf("read pcm: %w", err)
	}
	if pb == nil {
		return SampleBuffer{}, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = bitsPerSample
	}

	return SampleBuffer{
		Samples:    intSliceToFloat32(pb.Data, bd),
		Channels:   int(dec.NumChans),
		SampleRate: int(dec.SampleRate),
	}, nil
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(min(max(float64(v)*scale, -1.0), 1.0))
	}
	return out
}
