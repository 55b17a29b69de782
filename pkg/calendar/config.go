package calendar

// Config holds the presentation settings of a calendar instance.
type Config struct {
	// Palette is the discrete color scale, lightest first.
	Palette Palette
	// FileChangeCap clamps the file-changes domain.
	FileChangeCap float64
	// TemperatureUnit is appended to temperature readings in tooltips.
	TemperatureUnit string
}

// DefaultConfig returns the default calendar settings.
func DefaultConfig() Config {
	return Config{
		Palette:         DefaultPalette,
		FileChangeCap:   DefaultFileChangeCap,
		TemperatureUnit: DefaultTemperatureUnit,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()

	if len(c.Palette) == 0 {
		c.Palette = def.Palette
	}

	if c.FileChangeCap <= 0 {
		c.FileChangeCap = def.FileChangeCap
	}

	if c.TemperatureUnit == "" {
		c.TemperatureUnit = def.TemperatureUnit
	}

	return c
}
