package config

// Normalize fills in defaults. It must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Adapter == "" {
		cfg.Adapter = AdapterMCP2221
	}
	if cfg.TickMs == 0 {
		cfg.TickMs = 5
	}
	for i := range cfg.Sensors {
		s := &cfg.Sensors[i]
		if s.Address == 0 {
			s.Address = defaultAddress(s.Type)
		}
		if s.IntervalMs == 0 {
			s.IntervalMs = 5000
		}
		if s.CycleTimeoutMs == 0 {
			s.CycleTimeoutMs = 2000
		}
	}
}
