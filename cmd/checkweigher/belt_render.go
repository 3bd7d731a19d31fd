package main

import (
	"math"
	"strings"

	"checkweigher/internal/line"
)

const beltWidth = 64

// glyphRenderers draws one item per shape. Inspection never looks at the
// shape; only this view does.
var glyphRenderers = map[line.Shape]func(line.ItemView) rune{
	line.ShapeSack:     sackGlyph,
	line.ShapeSmallBag: smallBagGlyph,
}

func sackGlyph(item line.ItemView) rune {
	switch {
	case item.Verdict == line.VerdictRejected:
		return 'X'
	case item.ContaminantFlagged:
		return 'S'
	default:
		return 'B'
	}
}

func smallBagGlyph(item line.ItemView) rune {
	switch {
	case item.Verdict == line.VerdictRejected:
		return 'x'
	case item.ContaminantFlagged:
		return 's'
	default:
		return 'b'
	}
}

// renderBelt draws the belt between the infeed and the disposal bound with
// the scan (|) and weigh (#) checkpoints marked.
func renderBelt(items []line.ItemView, settings line.Settings) string {
	cells := []rune(strings.Repeat("-", beltWidth))
	span := settings.DisposalBound - settings.InfeedPosition
	if span <= 0 {
		return string(cells)
	}
	column := func(pos float64) (int, bool) {
		idx := int(math.Floor((pos - settings.InfeedPosition) / span * float64(beltWidth-1)))
		if idx < 0 || idx >= beltWidth {
			return 0, false
		}
		return idx, true
	}
	if idx, ok := column(settings.ScanPosition); ok {
		cells[idx] = '|'
	}
	if idx, ok := column(settings.WeighPosition); ok {
		cells[idx] = '#'
	}
	for _, item := range items {
		idx, ok := column(item.Position)
		if !ok {
			continue
		}
		render, found := glyphRenderers[item.Shape]
		if !found {
			render = smallBagGlyph
		}
		cells[idx] = render(item)
	}
	return "[" + string(cells) + "]"
}
