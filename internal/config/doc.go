// Package config loads the skyauth process configuration: a YAML file with
// defaults filled in, then SKYAUTH_* environment overrides. It maps the result
// onto skyAuth.Config and the HTTP layer's settings.
package config
