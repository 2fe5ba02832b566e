package capture

// Backend names.
const (
	BackendOpenCV = "opencv"
	BackendMock   = "mock"
)

// Config holds capture backend configuration.
type Config struct {
	// Backend selects the registered backend.
	// Default: "opencv"
	Backend string `yaml:"backend" json:"backend"`

	// ScanLimit is how many camera indices are tried when no camera is
	// specified. Default: 8
	ScanLimit int `yaml:"scan_limit" json:"scan_limit"`

	// Requested frame geometry for cameras. Zero keeps the device default.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// Synthetic device geometry for the mock backend.
	MockWidth    int `yaml:"mock_width" json:"mock_width"`
	MockHeight   int `yaml:"mock_height" json:"mock_height"`
	MockChannels int `yaml:"mock_channels" json:"mock_channels"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendOpenCV,
		ScanLimit:   8,
		MockWidth:    640,
		MockHeight:   480,
		MockChannels: 3,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Backend == "" {
		errors = append(errors, "backend is required")
	}
	if c.ScanLimit < 1 || c.ScanLimit > 64 {
		errors = append(errors, "scan_limit must be between 1 and 64")
	}
	if c.Width < 0 || c.Height < 0 {
		errors = append(errors, "width and height must not be negative")
	}
	if c.Backend == BackendMock {
		if c.MockWidth < 0 || c.MockHeight < 0 {
			errors = append(errors, "mock_width and mock_height must not be negative")
		}
		if c.MockChannels != 1 && c.MockChannels != 3 {
			errors = append(errors, "mock_channels must be 1 or 3")
		}
	}

	return errors
}
