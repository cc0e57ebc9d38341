package pipeline

import "github.com/Lllllllleong/documentpreview/internal/models"

// Options controls rasterization. Every derivative is exactly Width x Height pixels.
type Options struct {
	Width      int
	Height     int
	Quality    int
	Density    int
	Background string
}

// DefaultOptions returns the built-in rasterization settings.
func DefaultOptions() Options {
	return Options{
		Width:      480,
		Height:     640,
		Quality:    82,
		Density:    144,
		Background: "white",
	}
}

// WithDefaults fills zero fields from def.
func (o Options) WithDefaults(def Options) Options {
	if o.Width == 0 {
		o.Width = def.Width
	}
	if o.Height == 0 {
		o.Height = def.Height
	}
	if o.Quality == 0 {
		o.Quality = def.Quality
	}
	if o.Density == 0 {
		o.Density = def.Density
	}
	if o.Background == "" {
		o.Background = def.Background
	}
	return o
}

// Validate bounds every field so a request cannot ask the tool for an unbounded raster.
func (o Options) Validate() error {
	switch {
	case o.Width < 16 || o.Width > 4096:
		return invalidf("width %d out of range [16, 4096]", o.Width)
	case o.Height < 16 || o.Height > 4096:
		return invalidf("height %d out of range [16, 4096]", o.Height)
	case o.Quality < 1 || o.Quality > 100:
		return invalidf("quality %d out of range [1, 100]", o.Quality)
	case o.Density < 36 || o.Density > 600:
		return invalidf("density %d out of range [36, 600]", o.Density)
	case !validColor(o.Background):
		return invalidf("background %q is not a color name or #hex value", o.Background)
	}
	return nil
}

// OptionsFromPayload converts request overrides; nil yields zero Options.
func OptionsFromPayload(p *models.ThumbnailOptions) Options {
	if p == nil {
		return Options{}
	}
	return Options{
		Width:      p.Width,
		Height:     p.Height,
		Quality:    p.Quality,
		Density:    p.Density,
		Background: p.Background,
	}
}

// validColor accepts names like "white" or "transparent" and #rgb/#rrggbb(aa) values. It keeps
// arbitrary strings out of the tool's argument list.
func validColor(c string) bool {
	if c == "" || len(c) > 32 {
		return false
	}
	if c[0] == '#' {
		hex := c[1:]
		if len(hex) != 3 && len(hex) != 6 && len(hex) != 8 {
			return false
		}
		for _, r := range hex {
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F') {
				return false
			}
		}
		return true
	}
	for _, r := range c {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
