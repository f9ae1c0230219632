package dispatch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxscene/pkg/protocol"
)

type fakeScene struct {
	calls     []string
	panicWall bool
}

func (f *fakeScene) SetAreaState(area string, on bool) {
	f.calls = append(f.calls, fmt.Sprintf("state %s %t", area, on))
}

func (f *fakeScene) SetAreaIntensity(area string, intensity float64) {
	f.calls = append(f.calls, fmt.Sprintf("intensity %s %g", area, intensity))
}

func (f *fakeScene) SetAreaColor(area string, hexColor string) {
	if f.panicWall {
		panic("wall renderer missing")
	}
	f.calls = append(f.calls, fmt.Sprintf("color %s %s", area, hexColor))
}

func (f *fakeScene) SetAreaPlantsActive(area string, active bool) {
	f.calls = append(f.calls, fmt.Sprintf("plants %s %t", area, active))
}

type fakeLegacyPlants struct {
	fakeScene
}

func (f *fakeLegacyPlants) AddPlant(area, plantType, position string) {
	f.calls = append(f.calls, fmt.Sprintf("add %s %s %s", area, plantType, position))
}

func (f *fakeLegacyPlants) RemovePlant(area, plantType string) {
	f.calls = append(f.calls, fmt.Sprintf("remove %s %s", area, plantType))
}

func newTestTable(scene *fakeScene, opts ...Option) *Table {
	return NewTable(Controllers{Lighting: scene, Walls: scene, Plants: scene}, opts...)
}

func decode(t *testing.T, raw string) *protocol.Response {
	t.Helper()
	resp, err := protocol.DecodeResponse(raw)
	require.NoError(t, err)
	return resp
}

func TestDispatchSetWallColor(t *testing.T) {
	scene := &fakeScene{}
	table := newTestTable(scene)

	report := table.Dispatch(decode(t, `{"events":[{"name":"SetWallColor","parameters":{"area":"Kitchen","color":"#FF0000"}}]}`))

	assert.Equal(t, []string{"color Kitchen #FF0000"}, scene.calls)
	assert.Equal(t, 1, report.Applied())
	assert.Empty(t, report.Warnings())
}

func TestDispatchLightStateAcceptsBothRepresentations(t *testing.T) {
	testCases := []struct {
		name  string
		state string
	}{
		{name: "on string", state: `"on"`},
		{name: "native bool", state: `true`},
		{name: "upper case", state: `"ON"`},
		{name: "padded", state: `" on "`},
		{name: "one", state: `"1"`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			scene := &fakeScene{}
			table := newTestTable(scene)

			table.Dispatch(decode(t, `{"events":[{"name":"SetLightState","parameters":{"area":"Bedroom","state":`+testCase.state+`}}]}`))

			assert.Equal(t, []string{"state Bedroom true"}, scene.calls)
		})
	}
}

func TestDispatchUnknownEventDoesNotHaltBatch(t *testing.T) {
	scene := &fakeScene{}
	table := newTestTable(scene)

	report := table.Dispatch(decode(t, `{"events":[
		{"name":"OpenWindow","parameters":{"area":"Kitchen"}},
		{"name":"setwallcolor","parameters":{"area":"Kitchen","color":"#00FF00"}},
		{"name":"SetLightIntensity","parameters":{"area":"Kitchen","intensity":0.5}}
	]}`))

	assert.Equal(t, []string{"intensity Kitchen 0.5"}, scene.calls)
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, ReasonUnknown, report.Outcomes[0].Warning.Reason)
	assert.Equal(t, ReasonUnknown, report.Outcomes[1].Warning.Reason)
	assert.True(t, report.Outcomes[2].Applied)
}

func TestDispatchIsolatesPanickingHandler(t *testing.T) {
	scene := &fakeScene{panicWall: true}
	table := newTestTable(scene)

	report := table.Dispatch(decode(t, `{"events":[
		{"name":"SetLightState","parameters":{"area":"Hall","state":"off"}},
		{"name":"SetWallColor","parameters":{"area":"Hall","color":"#123456"}},
		{"name":"TogglePlant","parameters":{"area":"Hall","add":true}}
	]}`))

	assert.Equal(t, []string{"state Hall false", "plants Hall true"}, scene.calls)
	require.Len(t, report.Outcomes, 3)
	assert.True(t, report.Outcomes[0].Applied)
	assert.Equal(t, ReasonFailed, report.Outcomes[1].Warning.Reason)
	assert.True(t, report.Outcomes[2].Applied)
}

func TestDispatchIsolatesErroringHandler(t *testing.T) {
	var order []string
	record := func(name string, err error) Handler {
		return func(protocol.Params) error {
			order = append(order, name)
			return err
		}
	}
	table := NewTable(Controllers{},
		WithHandler("A", record("A", nil)),
		WithHandler("B", record("B", errors.New("boom"))),
		WithHandler("C", record("C", nil)),
	)

	report := table.Dispatch(decode(t, `{"events":[{"name":"A"},{"name":"B"},{"name":"C"}]}`))

	assert.Equal(t, []string{"A", "B", "C"}, order)
	assert.Equal(t, 2, report.Applied())
	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, "B", report.Warnings()[0].Event)
	assert.Equal(t, ReasonFailed, report.Warnings()[0].Reason)
}

func TestDispatchSkipsInvalidParameters(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "missing area", raw: `{"name":"SetWallColor","parameters":{"color":"#FF0000"}}`},
		{name: "empty area", raw: `{"name":"SetWallColor","parameters":{"area":"","color":"#FF0000"}}`},
		{name: "null area", raw: `{"name":"SetLightState","parameters":{"area":null,"state":true}}`},
		{name: "no parameters", raw: `{"name":"SetLightState"}`},
		{name: "bad state", raw: `{"name":"SetLightState","parameters":{"area":"Hall","state":"maybe"}}`},
		{name: "bad intensity", raw: `{"name":"SetLightIntensity","parameters":{"area":"Hall","intensity":"bright"}}`},
		{name: "bool intensity", raw: `{"name":"SetLightIntensity","parameters":{"area":"Hall","intensity":true}}`},
		{name: "toggle without flag", raw: `{"name":"TogglePlant","parameters":{"area":"Hall"}}`},
		{name: "toggle bad flag", raw: `{"name":"TogglePlant","parameters":{"area":"Hall","add":"sometimes"}}`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			scene := &fakeScene{}
			table := newTestTable(scene)

			report := table.Dispatch(decode(t, `{"events":[`+testCase.raw+`]}`))

			assert.Empty(t, scene.calls)
			require.Len(t, report.Warnings(), 1)
			assert.Equal(t, ReasonBadParameter, report.Warnings()[0].Reason)
		})
	}
}

func TestDispatchUnnamedEvent(t *testing.T) {
	table := newTestTable(&fakeScene{})

	report := table.Dispatch(decode(t, `{"events":[{"parameters":{"area":"Hall"}}]}`))

	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, ReasonUnnamed, report.Warnings()[0].Reason)
}

func TestDispatchTogglePlantAliases(t *testing.T) {
	scene := &fakeScene{}
	table := newTestTable(scene)

	table.Dispatch(decode(t, `{"events":[
		{"name":"TogglePlant","parameters":{"area":"Patio","add":"off","plantType":"fern"}},
		{"name":"TogglePlant","parameters":{"area":"Patio","active":"TRUE"}}
	]}`))

	assert.Equal(t, []string{"plants Patio false", "plants Patio true"}, scene.calls)
}

func TestDispatchLegacyPlantEvents(t *testing.T) {
	t.Run("legacy controller", func(t *testing.T) {
		plants := &fakeLegacyPlants{}
		table := NewTable(Controllers{Plants: plants})

		table.Dispatch(decode(t, `{"events":[
			{"name":"AddPlant","parameters":{"area":"Office","plantType":"cactus","position":"desk"}},
			{"name":"RemovePlant","parameters":{"area":"Office"}}
		]}`))

		assert.Equal(t, []string{"add Office cactus desk", "remove Office "}, plants.calls)
	})

	t.Run("current controller", func(t *testing.T) {
		scene := &fakeScene{}
		table := newTestTable(scene)

		table.Dispatch(decode(t, `{"events":[
			{"name":"AddPlant","parameters":{"area":"Office"}},
			{"name":"RemovePlant","parameters":{"area":"Office"}}
		]}`))

		assert.Equal(t, []string{"plants Office true", "plants Office false"}, scene.calls)
	})
}

func TestDispatchWithoutController(t *testing.T) {
	table := NewTable(Controllers{})

	report := table.Dispatch(decode(t, `{"events":[{"name":"SetWallColor","parameters":{"area":"Hall","color":"#fff"}}]}`))

	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, ReasonNoController, report.Warnings()[0].Reason)
}

func TestDispatchNilResponse(t *testing.T) {
	report := newTestTable(&fakeScene{}).Dispatch(nil)
	assert.Empty(t, report.Outcomes)
}

func TestTableNames(t *testing.T) {
	table := NewTable(Controllers{}, WithHandler("Zap", func(protocol.Params) error { return nil }))

	assert.Equal(t, []string{"AddPlant", "RemovePlant", "SetLightIntensity", "SetLightState", "SetWallColor", "TogglePlant", "Zap"}, table.Names())
}
