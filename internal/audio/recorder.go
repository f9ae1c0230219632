package audio

import (
	"errors"
	"fmt"
	log "log/slog"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"voxscene/pkg/pcm"
)

const (
	DefaultSampleRate = 16000
	DefaultMaxLength  = 30 * time.Second
	frameSize         = 1024
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

type Options struct {
	SampleRate int
	Channels   int
	MaxLength  time.Duration
}

// Recorder captures the default input device between Start and Stop.
type Recorder struct {
	opt Options

	mu     sync.Mutex
	stop   chan struct{}
	done   chan result
	active bool
}

type result struct {
	samples []float32
	err     error
}

func NewRecorder(opt Options) *Recorder {
	if opt.SampleRate <= 0 {
		opt.SampleRate = DefaultSampleRate
	}
	if opt.Channels <= 0 {
		opt.Channels = 1
	}
	if opt.MaxLength <= 0 {
		opt.MaxLength = DefaultMaxLength
	}
	return &Recorder{opt: opt}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return ErrAlreadyRecording
	}

	buf := make([]float32, frameSize*r.opt.Channels)
	stream, err := portaudio.OpenDefaultStream(
		r.opt.Channels, // in
		0,              // no out
		float64(r.opt.SampleRate),
		frameSize,
		buf,
	)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	r.stop = make(chan struct{})
	r.done = make(chan result, 1)
	r.active = true

	go r.capture(stream, buf, r.stop, r.done)

	log.Debug("Recording started", "rate", r.opt.SampleRate, "channels", r.opt.Channels)
	return nil
}

func (r *Recorder) capture(stream *portaudio.Stream, buf []float32, stop <-chan struct{}, done chan<- result) {
	defer stream.Close()
	defer stream.Stop()

	maxSamples := int(float64(r.opt.SampleRate)*r.opt.MaxLength.Seconds()) * r.opt.Channels
	out := make([]float32, 0, r.opt.SampleRate*r.opt.Channels*3)

	for {
		select {
		case <-stop:
			done <- result{samples: out}
			return
		default:
		}

		if len(out) >= maxSamples {
			// keep the stream open until Stop so the caller sees one buffer
			<-stop
			done <- result{samples: out}
			return
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				log.Debug("Input overflowed", "err", err)
				continue
			}
			done <- result{err: fmt.Errorf("read input stream: %w", err)}
			<-stop
			return
		}

		out = append(out, buf...)
	}
}

// Stop ends the capture and returns what was recorded.
func (r *Recorder) Stop() (pcm.SampleBuffer, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return pcm.SampleBuffer{}, ErrNotRecording
	}
	r.active = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	res := <-done
	if res.err != nil {
		return pcm.SampleBuffer{}, res.err
	}

	buf := pcm.SampleBuffer{
		Samples:    res.samples,
		Channels:   r.opt.Channels,
		SampleRate: r.opt.SampleRate,
	}
	log.Debug("Recording stopped", "frames", buf.Frames(), "rms", frameRMS(res.samples))
	return buf, nil
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
