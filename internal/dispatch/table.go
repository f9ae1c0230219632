package dispatch

import (
	"errors"
	"fmt"
	log "log/slog"
	"runtime/debug"
	"slices"

	"voxscene/pkg/protocol"
)

type Lighting interface {
	SetAreaState(area string, on bool)
	SetAreaIntensity(area string, intensity float64)
}

type WallColor interface {
	SetAreaColor(area string, hexColor string)
}

type Plants interface {
	SetAreaPlantsActive(area string, active bool)
}

// LegacyPlants is implemented by plant controllers that still place and
// remove individual plants.
type LegacyPlants interface {
	AddPlant(area, plantType, position string)
	RemovePlant(area, plantType string)
}

type Controllers struct {
	Lighting Lighting
	Walls    WallColor
	Plants   Plants
}

// Handler validates an event's parameters and forwards them to a controller.
type Handler func(params protocol.Params) error

var errNoController = errors.New("no controller bound")

type Option func(map[string]Handler)

// WithHandler registers an extra handler, replacing any built-in one with the same name.
func WithHandler(name string, h Handler) Option {
	return func(m map[string]Handler) {
		m[name] = h
	}
}

// Table maps event names to handlers. It is fixed once built.
type Table struct {
	handlers map[string]Handler
}

func NewTable(c Controllers, opts ...Option) *Table {
	handlers := map[string]Handler{
		protocol.EventSetLightState:     c.setLightState,
		protocol.EventSetLightIntensity: c.setLightIntensity,
		protocol.EventSetWallColor:      c.setWallColor,
		protocol.EventTogglePlant:       c.togglePlant,
		protocol.EventAddPlant:          c.addPlant,
		protocol.EventRemovePlant:       c.removePlant,
	}
	for _, opt := range opts {
		opt(handlers)
	}
	return &Table{handlers: handlers}
}

// Names lists the registered event names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch runs every event in order. A failing event is reported and
// skipped, it never stops the rest of the batch.
func (t *Table) Dispatch(resp *protocol.Response) Report {
	var report Report
	if resp == nil {
		return report
	}

	for i, ev := range resp.Events {
		outcome := Outcome{Index: i, Name: ev.Name}

		if w := t.run(i, ev); w != nil {
			outcome.Warning = w
			log.Warn("Event skipped", "index", i, "event", ev.Name, "reason", w.Reason, "err", w.Err)
		} else {
			outcome.Applied = true
			log.Debug("Event applied", "index", i, "event", ev.Name)
		}

		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report
}

func (t *Table) run(i int, ev protocol.Event) (w *Warning) {
	if ev.Name == "" {
		return &Warning{Index: i, Reason: ReasonUnnamed, Err: errors.New("event has no name")}
	}

	h, ok := t.handlers[ev.Name]
	if !ok {
		return &Warning{Index: i, Event: ev.Name, Reason: ReasonUnknown, Err: fmt.Errorf("no handler registered for %q", ev.Name)}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Debug("Handler panic", "event", ev.Name, "stack", string(debug.Stack()))
			w = &Warning{Index: i, Event: ev.Name, Reason: ReasonFailed, Err: fmt.Errorf("handler panic: %v", r)}
		}
	}()

	params := ev.Parameters
	if params == nil {
		params = protocol.Params{}
	}

	err := h(params)
	var paramErr *ParamError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &paramErr):
		return &Warning{Index: i, Event: ev.Name, Reason: ReasonBadParameter, Err: err}
	case errors.Is(err, errNoController):
		return &Warning{Index: i, Event: ev.Name, Reason: ReasonNoController, Err: err}
	default:
		return &Warning{Index: i, Event: ev.Name, Reason: ReasonFailed, Err: err}
	}
}

// ---- Handlers ----

func (c Controllers) setLightState(p protocol.Params) error {
	if c.Lighting == nil {
		return fmt.Errorf("lighting: %w", errNoController)
	}
	area, err := String(p, "area")
	if err != nil {
		return err
	}
	on, err := LightState(p, "state")
	if err != nil {
		return err
	}
	c.Lighting.SetAreaState(area, on)
	return nil
}

func (c Controllers) setLightIntensity(p protocol.Params) error {
	if c.Lighting == nil {
		return fmt.Errorf("lighting: %w", errNoController)
	}
	area, err := String(p, "area")
	if err != nil {
		return err
	}
	intensity, err := Float(p, "intensity")
	if err != nil {
		return err
	}
	c.Lighting.SetAreaIntensity(area, intensity)
	return nil
}

func (c Controllers) setWallColor(p protocol.Params) error {
	if c.Walls == nil {
		return fmt.Errorf("walls: %w", errNoController)
	}
	area, err := String(p, "area")
	if err != nil {
		return err
	}
	hex, err := String(p, "color")
	if err != nil {
		return err
	}
	c.Walls.SetAreaColor(area, hex)
	return nil
}

// togglePlant takes its flag from "add", or "active" when "add" is absent.
func (c Controllers) togglePlant(p protocol.Params) error {
	if c.Plants == nil {
		return fmt.Errorf("plants: %w", errNoController)
	}
	area, err := String(p, "area")
	if err != nil {
		return err
	}

	key := "add"
	if _, ok := p[key]; !ok {
		key = "active"
	}
	active, err := Bool(p, key)
	if err != nil {
		return err
	}

	log.Debug("Toggle plants", "area", area, "active", active, "plantType", OptionalString(p, "plantType"))
	c.Plants.SetAreaPlantsActive(area, active)
	return nil
}

func (c Controllers) addPlant(p protocol.Params) error {
	if c.Plants == nil {
		return fmt.Errorf("plants: %w", errNoController)
	}
	area, err := String(p, "area")
	if err != nil {
		return err
	}
	if legacy, ok := c.Plants.(LegacyPlants); ok {
		legacy.AddPlant(area, OptionalString(p, "plantType"), OptionalString(p, "position"))
		return nil
	}
	c.Plants.SetAreaPlantsActive(area, true)
	return nil
}

func (c Controllers) removePlant(p protocol.Params) error {
	if c.Plants == nil {
		return fmt.Errorf("plants: %w", errNoController)
	}
	area, err := String(p, "area")
	if err != nil {
		return err
	}
	if legacy, ok := c.Plants.(LegacyPlants); ok {
		legacy.RemovePlant(area, OptionalString(p, "plantType"))
		return nil
	}
	c.Plants.SetAreaPlantsActive(area, false)
	return nil
}
