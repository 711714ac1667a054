// Package config loads ringd/ringctl configuration from layered sources:
// built-in defaults, a global config file, a project-local config file, and
// command-line overrides, in that precedence order.
package config
