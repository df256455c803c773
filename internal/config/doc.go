// Package config loads the compound fleet configuration through viper.
//
// Values come from a YAML config file, COMPOUND_* environment variables
// and the defaults registered by SetDefaults, in that order of precedence.
// Load validates the result; Watch re-loads it when the file changes so a
// running fleet can pick up a new role vocabulary and composition list.
package config
