package security

// SecurityPolicy defines the security configuration.
type SecurityPolicy struct {
	// MaxCommandLength is the longest command string accepted, in bytes.
	MaxCommandLength int `mapstructure:"max_command_length"`

	// AllowedCommands extends the built-in verb allow-list.
	AllowedCommands []string `mapstructure:"allowed_commands"`

	// RestrictedPaths contains paths that are completely forbidden.
	RestrictedPaths []string `mapstructure:"restricted_paths"`

	// MaxParentDepth is how many levels a relative path may climb with "..".
	MaxParentDepth int `mapstructure:"max_parent_depth"`

	// AllowPipes permits "|" when every pipeline stage is allow-listed.
	AllowPipes bool `mapstructure:"allow_pipes"`
}

const (
	DefaultMaxCommandLength = 1024
	DefaultMaxParentDepth   = 2
)

// DefaultPolicy returns the default security policy.
func DefaultPolicy() *SecurityPolicy {
	return &SecurityPolicy{
		MaxCommandLength: DefaultMaxCommandLength,
		AllowedCommands:  []string{},
		RestrictedPaths:  []string{},
		MaxParentDepth:   DefaultMaxParentDepth,
		AllowPipes:       true,
	}
}
