package render

import (
	"bytes"
	"fmt"

	"github.com/fogleman/gg"
)

// Legend draws a color swatch per class with its name next to it and returns the
// result as PNG. PNG keeps the swatch colors exact, which matters when someone
// color picks the legend to match it against an overlay.
func Legend(palette *Palette, names []string) ([]byte, error) {
	rows := len(names)
	if palette.NumClasses() > rows {
		rows = palette.NumClasses()
	}
	if rows == 0 {
		return nil, fmt.Errorf("legend needs at least one class")
	}

	const pad = 10
	const rowHeight = 26
	const swatch = 16
	// The default font is 7px wide per character.
	maxName := 0
	for _, n := range names {
		if len(n) > maxName {
			maxName = len(n)
		}
	}
	if maxName < 8 {
		maxName = 8
	}
	width := pad + swatch + 8 + maxName*7 + pad
	height := pad*2 + rows*rowHeight

	dc := gg.NewContext(width, height)
	dc.SetRGB255(255, 255, 255)
	dc.Clear()
	for i := 0; i < rows; i++ {
		top := float64(pad + i*rowHeight)
		c := palette.Color(i)
		dc.SetRGB255(int(c[0]), int(c[1]), int(c[2]))
		dc.DrawRectangle(pad, top+float64(rowHeight-swatch)/2, swatch, swatch)
		dc.Fill()
		name := fmt.Sprintf("class %v", i)
		if i < len(names) {
			name = names[i]
		}
		dc.SetRGB255(20, 20, 20)
		dc.DrawString(name, pad+swatch+8, top+float64(rowHeight)/2+4)
	}

	buf := bytes.Buffer{}
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
