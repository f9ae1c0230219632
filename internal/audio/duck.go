package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type SinkInput struct {
	ID      int
	Volume  int
	AppName string
}

// Mixer is the subset of pactl the ducker needs.
type Mixer interface {
	SinkInputs(ctx context.Context) ([]SinkInput, error)
	SetVolume(ctx context.Context, id, percent int) error
}

// Ducker lowers every other playback stream while the microphone is open so
// the recording does not pick up music or video audio.
type Ducker struct {
	mixer     Mixer
	skipApps  []string
	factor    float64
	minVolume int
	fade      time.Duration

	mu       sync.Mutex
	active   bool
	original map[int]int
}

type DuckOptions struct {
	SkipApps  []string
	Factor    float64
	MinVolume int
	Fade      time.Duration
}

func NewDucker(mixer Mixer, opt DuckOptions) *Ducker {
	if mixer == nil {
		mixer = pactl{}
	}
	if opt.Factor <= 0 || opt.Factor > 1 {
		opt.Factor = 0.3
	}
	return &Ducker{
		mixer:     mixer,
		skipApps:  slices.Clone(opt.SkipApps),
		factor:    opt.Factor,
		minVolume: clampVolume(opt.MinVolume),
		fade:      opt.Fade,
		original:  make(map[int]int),
	}
}

func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	inputs, err := d.mixer.SinkInputs(ctx)
	if err != nil {
		return err
	}

	d.original = make(map[int]int)
	var steps []fadeStep
	for _, in := range inputs {
		if slices.Contains(d.skipApps, in.AppName) {
			continue
		}
		to := int(math.Round(float64(in.Volume) * d.factor))
		to = max(to, d.minVolume)
		d.original[in.ID] = in.Volume
		steps = append(steps, fadeStep{id: in.ID, from: in.Volume, to: clampVolume(to)})
	}

	d.active = true
	log.Debug("Ducking playback", "streams", len(steps))
	return d.apply(ctx, steps)
}

// Restore brings ducked streams back to their volume from before Duck.
// Streams that appeared in between are left alone.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	inputs, err := d.mixer.SinkInputs(ctx)
	if err != nil {
		return err
	}

	var steps []fadeStep
	for _, in := range inputs {
		orig, ok := d.original[in.ID]
		if !ok {
			continue
		}
		steps = append(steps, fadeStep{id: in.ID, from: in.Volume, to: orig})
	}

	d.active = false
	d.original = make(map[int]int)
	log.Debug("Restoring playback", "streams", len(steps))
	return d.apply(ctx, steps)
}

type fadeStep struct {
	id, from, to int
}

func (d *Ducker) apply(ctx context.Context, steps []fadeStep) error {
	if len(steps) == 0 {
		return nil
	}

	n := int(d.fade / (10 * time.Millisecond))
	if n < 1 {
		n = 1
	}
	pause := d.fade / time.Duration(n)

	for i := 1; i <= n; i++ {
		frac := float64(i) / float64(n)
		for _, s := range steps {
			v := int(math.Round(float64(s.from) + float64(s.to-s.from)*frac))
			if err := d.mixer.SetVolume(ctx, s.id, v); err != nil {
				return fmt.Errorf("set volume of sink input %d: %w", s.id, err)
			}
		}
		if i < n && pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	return nil
}

func clampVolume(v int) int {
	return min(max(v, 0), maxVolume)
}

type pactl struct{}

func (pactl) SinkInputs(ctx context.Context) ([]SinkInput, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (pactl) SetVolume(ctx context.Context, id, percent int) error {
	arg := strconv.Itoa(clampVolume(percent)) + "%"
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg).Run()
}

func parseSinkInputs(text string) []SinkInput {
	blocks := strings.Split(text, "Sink Input #")
	if len(blocks) <= 1 {
		return nil
	}

	var res []SinkInput
	for _, block := range blocks[1:] {
		header, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil {
			continue
		}

		in := SinkInput{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && in.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); m != nil {
					in.Volume, _ = strconv.Atoi(m[1])
				}
			}
			if rest, found := strings.CutPrefix(line, "application.name = "); found && in.AppName == "" {
				in.AppName = strings.Trim(rest, `"`)
			}
		}

		if in.Volume == 0 && in.AppName == "" {
			continue
		}
		res = append(res, in)
	}
	return res
}
