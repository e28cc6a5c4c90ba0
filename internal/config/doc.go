// Package config loads, normalizes, and validates clipforge configuration.
//
// Configuration lives in a TOML file. Load starts from Default, overlays
// the file when it exists, expands ~ in path fields, and validates the
// result. A sample file is embedded for `config init`.
package config
