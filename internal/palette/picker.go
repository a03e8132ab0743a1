// Package palette generates visually distinct colors for a set of lights.
//
// Each light in a round gets an Assignment: a LOW or HIGH level per RGB
// channel. Assignments where every channel has the same level are rejected
// (they read as black or white), as are assignments already handed out in the
// current run. A color is then drawn inside the band of each channel level.
package palette

import (
	"errors"
	"fmt"

	"github.com/dokzlo13/haparty/internal/hue"
)

// DefaultWidth is the default width of the LOW and HIGH channel bands.
const DefaultWidth = 32

// ErrExhausted is returned once every valid assignment has been used.
var ErrExhausted = errors.New("palette exhausted: no unused channel pattern left")

// Intn draws integers in [lo, hi).
type Intn interface {
	InRange(lo, hi int64) (int64, error)
}

// Level is the brightness band of one color channel.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Assignment holds the level of the R, G and B channels, in that order.
type Assignment [3]Level

// Uniform reports whether all channels share the same level.
func (a Assignment) Uniform() bool {
	return a[0] == a[1] && a[1] == a[2]
}

func (a Assignment) String() string {
	return fmt.Sprintf("%s/%s/%s", a[0], a[1], a[2])
}

// allAssignments enumerates the eight possible channel patterns.
func allAssignments() []Assignment {
	out := make([]Assignment, 0, 8)
	for i := 0; i < 8; i++ {
		out = append(out, Assignment{i&4 != 0, i&2 != 0, i&1 != 0})
	}
	return out
}

// History records the assignments handed out during a run. It only grows.
// Not safe for concurrent use.
type History struct {
	order []Assignment
	seen  map[Assignment]struct{}
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{seen: make(map[Assignment]struct{})}
}

// Contains reports whether a was handed out before.
func (h *History) Contains(a Assignment) bool {
	_, ok := h.seen[a]
	return ok
}

// Add records a.
func (h *History) Add(a Assignment) {
	if h.Contains(a) {
		return
	}
	h.seen[a] = struct{}{}
	h.order = append(h.order, a)
}

// Len returns the number of recorded assignments.
func (h *History) Len() int {
	return len(h.order)
}

// Assignments returns the recorded assignments in the order they were added.
func (h *History) Assignments() []Assignment {
	return append([]Assignment(nil), h.order...)
}

// Picker hands out assignments and colors. Not safe for concurrent use.
type Picker struct {
	src     Intn
	width   int64
	history *History
}

// NewPicker creates a picker drawing from src with the given band width.
// A width outside (0, 128] falls back to DefaultWidth so the bands never
// overlap.
func NewPicker(src Intn, width int) *Picker {
	if width <= 0 || width > 128 {
		width = DefaultWidth
	}
	return &Picker{
		src:     src,
		width:   int64(width),
		history: NewHistory(),
	}
}

// History returns the picker's history.
func (p *Picker) History() *History {
	return p.history
}

// Remaining returns the number of valid assignments not yet used.
func (p *Picker) Remaining() int {
	n := 0
	for _, a := range allAssignments() {
		if !a.Uniform() && !p.history.Contains(a) {
			n++
		}
	}
	return n
}

// NextAssignment samples channel levels until it finds a non-uniform pattern
// that is not in the history, records it and returns it. It returns
// ErrExhausted instead of sampling when no such pattern remains.
func (p *Picker) NextAssignment() (Assignment, error) {
	if p.Remaining() == 0 {
		return Assignment{}, ErrExhausted
	}

	for {
		var a Assignment
		for i := range a {
			v, err := p.src.InRange(0, 2)
			if err != nil {
				return Assignment{}, err
			}
			a[i] = v == 1
		}
		if a.Uniform() || p.history.Contains(a) {
			continue
		}
		p.history.Add(a)
		return a, nil
	}
}

// ColorFor draws a color whose channels fall in the bands of a: LOW channels
// in [0, width), HIGH channels in [256-width, 256).
func (p *Picker) ColorFor(a Assignment) (hue.RGB, error) {
	var ch [3]uint8
	for i, level := range a {
		lo, hi := int64(0), p.width
		if level == High {
			lo, hi = 256-p.width, 256
		}
		v, err := p.src.InRange(lo, hi)
		if err != nil {
			return hue.RGB{}, err
		}
		ch[i] = uint8(v)
	}
	return hue.RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}

// Next returns a fresh assignment together with a color drawn for it.
func (p *Picker) Next() (hue.RGB, Assignment, error) {
	a, err := p.NextAssignment()
	if err != nil {
		return hue.RGB{}, Assignment{}, err
	}
	c, err := p.ColorFor(a)
	if err != nil {
		return hue.RGB{}, Assignment{}, err
	}
	return c, a, nil
}
