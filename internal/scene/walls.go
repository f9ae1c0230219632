package scene

import (
	log "log/slog"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var hexColorRe = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type Walls struct {
	areas *areaIndex[string]
	sink  Sink
}

// NewWalls starts every area at white.
func NewWalls(areas []string, sink Sink) *Walls {
	return &Walls{
		areas: newAreaIndex(areas, func() string { return "#ffffff" }),
		sink:  sink,
	}
}

// SetAreaColor accepts #RGB or #RRGGBB and forwards the color as lower-case #rrggbb.
func (w *Walls) SetAreaColor(area string, hexColor string) {
	s := strings.TrimSpace(hexColor)
	if !hexColorRe.MatchString(s) {
		log.Warn("Invalid hex color", "area", area, "color", hexColor)
		return
	}
	c, err := colorful.Hex(s)
	if err != nil {
		log.Warn("Invalid hex color", "area", area, "color", hexColor)
		return
	}
	hex := c.Hex()

	var cmd Command
	ok := w.areas.update(area, func(name string, st *string) {
		*st = hex
		cmd = Command{Target: TargetWall, Area: name, Action: "color", Value: hex}
	})
	if !ok {
		log.Warn("No walls for area", "area", area)
		return
	}
	forward(w.sink, cmd)
}

func (w *Walls) Snapshot() map[string]string {
	return w.areas.snapshot(nil)
}
