package scene

import (
	log "log/slog"
	"strconv"
)

type LightState struct {
	On        bool
	Intensity float64
}

type Lights struct {
	areas *areaIndex[LightState]
	sink  Sink
}

func NewLights(areas []string, sink Sink) *Lights {
	return &Lights{
		areas: newAreaIndex(areas, func() LightState { return LightState{On: true, Intensity: 1} }),
		sink:  sink,
	}
}

func (l *Lights) SetAreaState(area string, on bool) {
	var cmd Command
	ok := l.areas.update(area, func(name string, st *LightState) {
		st.On = on
		cmd = Command{Target: TargetLight, Area: name, Action: "state", Value: onOff(on)}
	})
	if !ok {
		log.Warn("No lights found for area", "area", area)
		return
	}
	forward(l.sink, cmd)
}

func (l *Lights) SetAreaIntensity(area string, intensity float64) {
	var cmd Command
	ok := l.areas.update(area, func(name string, st *LightState) {
		st.Intensity = intensity
		cmd = Command{Target: TargetLight, Area: name, Action: "intensity", Value: strconv.FormatFloat(intensity, 'g', -1, 64)}
	})
	if !ok {
		log.Warn("No lights found for area", "area", area)
		return
	}
	forward(l.sink, cmd)
}

func (l *Lights) Snapshot() map[string]LightState {
	return l.areas.snapshot(nil)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
