// Package procedure models timed lab procedures (ordered steps with optional
// primary countdowns and nested active/rest cycles) and manages the library
// of presets, saved procedures and YAML procedure files that feed the engine.
package procedure
