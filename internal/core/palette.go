package core

import "math/rand/v2"

// Palette is the set of colors assigned to categories created without one.
var Palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#FFB347", "#87CEEB", "#98D8C8", "#F7DC6F",
	"#BB8FCE", "#85C1E9", "#F8C471", "#82E0AA", "#F1948A",
}

// PaletteColor cycles through the palette by index.
func PaletteColor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

func RandomColor() string {
	return Palette[rand.IntN(len(Palette))]
}
