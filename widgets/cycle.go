package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"note-gate/gate"
)

// MaxSlots is the widest cycle drawn slot by slot; longer cycles are
// truncated with a count.
const MaxSlots = 32

// CycleStyle holds the colors and glyphs for a cycle bar
type CycleStyle struct {
	Pass, Block, Cursor [3]uint8
	On, Off, Next       rune
}

// RenderSlot renders a single colored slot
func RenderSlot(color [3]uint8, r rune) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(r))
}

// RenderCycle draws the pattern as one row of slots, with a marker row above
// pointing at next (1-based)
func RenderCycle(p gate.Pattern, next int, st CycleStyle) string {
	n := min(p.Length(), MaxSlots)

	var marker, slots strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			marker.WriteString(" ")
			slots.WriteString(" ")
		}
		if i+1 == next {
			marker.WriteString(RenderSlot(st.Cursor, st.Next))
		} else {
			marker.WriteString(" ")
		}
		if p.Passes(i) {
			slots.WriteString(RenderSlot(st.Pass, st.On))
		} else {
			slots.WriteString(RenderSlot(st.Block, st.Off))
		}
	}
	if extra := p.Length() - n; extra > 0 {
		fmt.Fprintf(&slots, " +%d", extra)
		if next > n {
			fmt.Fprintf(&marker, " %d", next)
		}
	}
	return marker.String() + "\n" + slots.String()
}

// SlotAt maps a column in a rendered cycle row to a 1-based slot, or 0
func SlotAt(p gate.Pattern, x int) int {
	if x < 0 || x%2 != 0 {
		return 0
	}
	slot := x/2 + 1
	if slot > min(p.Length(), MaxSlots) {
		return 0
	}
	return slot
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
