// Package config loads the daemon's YAML configuration.
//
// The file is optional: DefaultConfig is a complete, valid configuration and
// a file only needs the keys it changes. Unknown keys are rejected so typos
// surface at startup. Command-line flags are applied on top by the CLI.
package config
