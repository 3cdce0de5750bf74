package render

// Palette maps class ids to display colors.
type Palette struct {
	Colors [][3]uint8
}

// Color returns the color for a class id. Ids outside the palette render as
// mid gray, so a palette that is smaller than the model never crashes a render.
func (p *Palette) Color(classID int) [3]uint8 {
	if classID >= 0 && classID < len(p.Colors) {
		return p.Colors[classID]
	}
	return [3]uint8{128, 128, 128}
}

func (p *Palette) NumClasses() int {
	return len(p.Colors)
}

// AerialClassNames are the classes of the aerial land cover dataset this project
// was built around.
func AerialClassNames() []string {
	return []string{"Building", "Land", "Road", "Vegetation", "Water", "Unlabeled"}
}

// AerialPalette returns the dataset's standard colors, in class id order.
func AerialPalette() *Palette {
	return &Palette{
		Colors: [][3]uint8{
			{60, 16, 152},   // Building
			{132, 41, 246},  // Land
			{110, 193, 228}, // Road
			{254, 221, 58},  // Vegetation
			{226, 169, 41},  // Water
			{155, 155, 155}, // Unlabeled
		},
	}
}

// MakePalette builds a palette of n colors. The first six are the aerial dataset
// colors, after which the hues repeat with the brightness stepped down, so every
// class still gets a distinct color.
func MakePalette(n int) *Palette {
	base := AerialPalette().Colors
	colors := make([][3]uint8, n)
	for i := 0; i < n; i++ {
		c := base[i%len(base)]
		shade := i / len(base) * 60
		if shade > 200 {
			shade = 200
		}
		for ch := 0; ch < 3; ch++ {
			if int(c[ch]) > shade {
				c[ch] -= uint8(shade)
			} else {
				c[ch] = 0
			}
		}
		colors[i] = c
	}
	return &Palette{Colors: colors}
}
