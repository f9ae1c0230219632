package audio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pactlOutput = `Sink Input #41
	Driver: protocol-native.c
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
Sink Input #57
	Driver: protocol-native.c
	Volume: mono: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "voxscene"
Sink Input #bogus
	Volume: mono: 65536 / 100% / 0.00 dB
`

type fakeMixer struct {
	inputs []SinkInput
	sets   map[int]int
}

func (m *fakeMixer) SinkInputs(context.Context) ([]SinkInput, error) {
	return m.inputs, nil
}

func (m *fakeMixer) SetVolume(_ context.Context, id, percent int) error {
	if m.sets == nil {
		m.sets = make(map[int]int)
	}
	m.sets[id] = percent
	for i := range m.inputs {
		if m.inputs[i].ID == id {
			m.inputs[i].Volume = percent
		}
	}
	return nil
}

func TestParseSinkInputs(t *testing.T) {
	inputs := parseSinkInputs(pactlOutput)

	assert.Equal(t, []SinkInput{
		{ID: 41, Volume: 80, AppName: "Firefox"},
		{ID: 57, Volume: 100, AppName: "voxscene"},
	}, inputs)
	assert.Nil(t, parseSinkInputs("no inputs here"))
}

func TestDuckerDucksOthersAndRestores(t *testing.T) {
	mixer := &fakeMixer{inputs: parseSinkInputs(pactlOutput)}
	d := NewDucker(mixer, DuckOptions{SkipApps: []string{"voxscene"}, Factor: 0.25, MinVolume: 10})
	ctx := context.Background()

	require.NoError(t, d.Duck(ctx))
	assert.Equal(t, map[int]int{41: 20}, mixer.sets)

	require.NoError(t, d.Duck(ctx), "second duck is a no-op")
	assert.Equal(t, 20, mixer.inputs[0].Volume)

	require.NoError(t, d.Restore(ctx))
	assert.Equal(t, 80, mixer.inputs[0].Volume)
	assert.Equal(t, 100, mixer.inputs[1].Volume)
}

func TestDuckerRespectsMinimumVolume(t *testing.T) {
	mixer := &fakeMixer{inputs: []SinkInput{{ID: 1, Volume: 20, AppName: "mpv"}}}
	d := NewDucker(mixer, DuckOptions{Factor: 0.1, MinVolume: 15})

	require.NoError(t, d.Duck(context.Background()))
	assert.Equal(t, 15, mixer.sets[1])
}

func TestRestoreWithoutDuckDoesNothing(t *testing.T) {
	mixer := &fakeMixer{inputs: []SinkInput{{ID: 1, Volume: 20}}}
	d := NewDucker(mixer, DuckOptions{})

	require.NoError(t, d.Restore(context.Background()))
	assert.Nil(t, mixer.sets)
}
