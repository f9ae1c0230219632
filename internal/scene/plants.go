package scene

import (
	log "log/slog"
	"slices"
)

type PlantState struct {
	Active bool
	Types  []string
}

type Plants struct {
	areas *areaIndex[PlantState]
	sink  Sink
}

func NewPlants(areas []string, sink Sink) *Plants {
	return &Plants{
		areas: newAreaIndex(areas, func() PlantState { return PlantState{Active: true} }),
		sink:  sink,
	}
}

func (p *Plants) SetAreaPlantsActive(area string, active bool) {
	var cmd Command
	ok := p.areas.update(area, func(name string, st *PlantState) {
		st.Active = active
		cmd = Command{Target: TargetPlant, Area: name, Action: "active", Value: onOff(active)}
	})
	if !ok {
		log.Warn("No plant parent found for area", "area", area)
		return
	}
	forward(p.sink, cmd)
}

// AddPlant makes the area's plants visible and records plantType if given.
func (p *Plants) AddPlant(area, plantType, position string) {
	var cmd Command
	ok := p.areas.update(area, func(name string, st *PlantState) {
		st.Active = true
		if plantType != "" && !slices.Contains(st.Types, plantType) {
			st.Types = append(st.Types, plantType)
		}
		cmd = Command{Target: TargetPlant, Area: name, Action: "add", Value: plantType, Extra: position}
	})
	if !ok {
		log.Warn("No plant parent found for area", "area", area)
		return
	}
	forward(p.sink, cmd)
}

// RemovePlant drops plantType from the area, or every plant when plantType is empty.
func (p *Plants) RemovePlant(area, plantType string) {
	var cmd Command
	ok := p.areas.update(area, func(name string, st *PlantState) {
		if plantType == "" {
			st.Types = nil
		} else {
			st.Types = slices.DeleteFunc(st.Types, func(t string) bool { return t == plantType })
		}
		st.Active = len(st.Types) > 0
		cmd = Command{Target: TargetPlant, Area: name, Action: "remove", Value: plantType}
	})
	if !ok {
		log.Warn("No plant parent found for area", "area", area)
		return
	}
	forward(p.sink, cmd)
}

func (p *Plants) Snapshot() map[string]PlantState {
	return p.areas.snapshot(func(st PlantState) PlantState {
		st.Types = slices.Clone(st.Types)
		return st
	})
}
