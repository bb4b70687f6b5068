package bc7

// Settings selects which block modes the encoder searches and how hard it
// refines each candidate. Zero-value Settings are invalid; start from one of
// the preset constructors and adjust.
type Settings struct {
	// Channels is 3 for opaque content and 4 when alpha matters. With 3
	// channels the source alpha is ignored and decoded blocks carry 255.
	Channels int

	// EnabledModes gates each of the eight block modes independently.
	EnabledModes [8]bool

	// RefineIterations runs per-mode rounds of endpoint least-squares
	// refinement on the winning candidate.
	RefineIterations [8]int

	// RefineIterationsChannel refines the scalar channel endpoints of the
	// dual-index modes 4 and 5.
	RefineIterationsChannel int

	// FastSkipThresholdMode1/3/7 bound how many partitions, ranked by a
	// cheap PCA residual estimate, the two-subset searches try. Zero
	// disables the mode even when enabled above.
	FastSkipThresholdMode1 int
	FastSkipThresholdMode3 int
	FastSkipThresholdMode7 int

	// Mode45Channel0 is the first channel tried for the mode 4/5 rotation
	// search. Raising it to 3 restricts the search to the alpha rotation.
	Mode45Channel0 int

	// SkipMode2 leaves mode 2 out of the search even when enabled; its 64
	// three-subset trials rarely pay off.
	SkipMode2 bool
}

// Validate reports whether the settings describe a usable configuration.
// The compression entry points run the same checks; Validate lets callers
// that queue work for later reject bad settings up front.
func (s *Settings) Validate() error {
	if s.Channels != 3 && s.Channels != 4 {
		return newError(ErrBadSettings, "bc7: channels must be 3 or 4")
	}
	for _, n := range s.RefineIterations {
		if n < 0 {
			return newError(ErrBadSettings, "bc7: negative refine iterations")
		}
	}
	if s.RefineIterationsChannel < 0 {
		return newError(ErrBadSettings, "bc7: negative refine iterations")
	}
	if s.FastSkipThresholdMode1 < 0 || s.FastSkipThresholdMode1 > 64 ||
		s.FastSkipThresholdMode3 < 0 || s.FastSkipThresholdMode3 > 64 ||
		s.FastSkipThresholdMode7 < 0 || s.FastSkipThresholdMode7 > 64 {
		return newError(ErrBadSettings, "bc7: fast skip threshold out of range 0..64")
	}
	if s.Mode45Channel0 < 0 || s.Mode45Channel0 > s.Channels {
		return newError(ErrBadSettings, "bc7: mode 4/5 start channel out of range")
	}
	return nil
}

// modesFor expands the four coarse selectors used by the presets: group 0
// covers modes 0 and 2, group 1 modes 1, 3 and 7, group 2 the dual-index
// modes 4 and 5, group 3 mode 6.
func modesFor(sel [4]bool) [8]bool {
	return [8]bool{
		sel[0], sel[1], sel[0], sel[1],
		sel[2], sel[2], sel[3], sel[1],
	}
}

// SettingsOpaqueUltraFast searches mode 6 only.
func SettingsOpaqueUltraFast() Settings {
	return Settings{
		Channels:                3,
		EnabledModes:            modesFor([4]bool{false, false, false, true}),
		SkipMode2:               true,
		FastSkipThresholdMode1:  3,
		FastSkipThresholdMode3:  1,
		FastSkipThresholdMode7:  0,
		Mode45Channel0:          0,
		RefineIterationsChannel: 0,
		RefineIterations:        [8]int{2, 2, 2, 1, 2, 2, 1, 0},
	}
}

func SettingsOpaqueVeryFast() Settings {
	return Settings{
		Channels:                3,
		EnabledModes:            modesFor([4]bool{false, true, false, true}),
		SkipMode2:               true,
		FastSkipThresholdMode1:  3,
		FastSkipThresholdMode3:  1,
		FastSkipThresholdMode7:  0,
		Mode45Channel0:          0,
		RefineIterationsChannel: 0,
		RefineIterations:        [8]int{2, 2, 2, 1, 2, 2, 1, 0},
	}
}

func SettingsOpaqueFast() Settings {
	return Settings{
		Channels:                3,
		EnabledModes:            modesFor([4]bool{false, true, false, true}),
		SkipMode2:               true,
		FastSkipThresholdMode1:  12,
		FastSkipThresholdMode3:  4,
		FastSkipThresholdMode7:  0,
		Mode45Channel0:          0,
		RefineIterationsChannel: 0,
		RefineIterations:        [8]int{2, 2, 2, 1, 2, 2, 2, 0},
	}
}

func SettingsOpaqueBasic() Settings {
	return Settings{
		Channels:                3,
		EnabledModes:            modesFor([4]bool{true, true, true, true}),
		SkipMode2:               true,
		FastSkipThresholdMode1:  12,
		FastSkipThresholdMode3:  8,
		FastSkipThresholdMode7:  0,
		Mode45Channel0:          0,
		RefineIterationsChannel: 2,
		RefineIterations:        [8]int{2, 2, 2, 2, 2, 2, 2, 0},
	}
}

// SettingsOpaqueSlow searches every mode and all 64 two-subset partitions.
func SettingsOpaqueSlow() Settings {
	return Settings{
		Channels:                3,
		EnabledModes:            modesFor([4]bool{true, true, true, true}),
		SkipMode2:               false,
		FastSkipThresholdMode1:  64,
		FastSkipThresholdMode3:  64,
		FastSkipThresholdMode7:  0,
		Mode45Channel0:          0,
		RefineIterationsChannel: 4,
		RefineIterations:        [8]int{4, 4, 4, 4, 4, 4, 4, 0},
	}
}

// SettingsAlphaUltraFast tries only the dual-index modes and mode 6, with the
// rotation search pinned to alpha.
func SettingsAlphaUltraFast() Settings {
	return Settings{
		Channels:                4,
		EnabledModes:            modesFor([4]bool{false, false, true, true}),
		SkipMode2:               true,
		FastSkipThresholdMode1:  0,
		FastSkipThresholdMode3:  0,
		FastSkipThresholdMode7:  4,
		Mode45Channel0:          3,
		RefineIterationsChannel: 1,
		RefineIterations:        [8]int{2, 1, 2, 1, 1, 1, 2, 2},
	}
}

func SettingsAlphaVeryFast() Settings {
	return Settings{
		Channels:                4,
		EnabledModes:            modesFor([4]bool{false, true, true, true}),
		SkipMode2:               true,
		FastSkipThresholdMode1:  0,
		FastSkipThresholdMode3:  0,
		FastSkipThresholdMode7:  4,
		Mode45Channel0:          3,
		RefineIterationsChannel: 2,
		RefineIterations:        [8]int{2, 1, 2, 1, 2, 2, 2, 2},
	}
}

func SettingsAlphaFast() Settings {
	return Settings{
		Channels:                4,
		EnabledModes:            modesFor([4]bool{false, true, true, true}),
		SkipMode2:               true,
		FastSkipThresholdMode1:  4,
		FastSkipThresholdMode3:  4,
		FastSkipThresholdMode7:  8,
		Mode45Channel0:          3,
		RefineIterationsChannel: 2,
		RefineIterations:        [8]int{2, 1, 2, 1, 2, 2, 2, 2},
	}
}

func SettingsAlphaBasic() Settings {
	return Settings{
		Channels:                4,
		EnabledModes:            modesFor([4]bool{true, true, true, true}),
		SkipMode2:               true,
		FastSkipThresholdMode1:  12,
		FastSkipThresholdMode3:  8,
		FastSkipThresholdMode7:  8,
		Mode45Channel0:          0,
		RefineIterationsChannel: 2,
		RefineIterations:        [8]int{2, 2, 2, 2, 2, 2, 2, 2},
	}
}

// SettingsAlphaSlow searches every mode and all 64 two-subset partitions.
func SettingsAlphaSlow() Settings {
	return Settings{
		Channels:                4,
		EnabledModes:            modesFor([4]bool{true, true, true, true}),
		SkipMode2:               false,
		FastSkipThresholdMode1:  64,
		FastSkipThresholdMode3:  64,
		FastSkipThresholdMode7:  64,
		Mode45Channel0:          0,
		RefineIterationsChannel: 4,
		RefineIterations:        [8]int{4, 4, 4, 4, 4, 4, 4, 4},
	}
}
