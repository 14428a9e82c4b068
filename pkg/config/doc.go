// Package config parses and validates the Device Server and Device
// Client's flags (S4), with an optional YAML file overlay read before
// flags are applied so that flags always win over the file.
package config
