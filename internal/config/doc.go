// Package config defines release settings used by the packager and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type replaces the ambient shell variables of the original
// workflow: it is built once at startup from the settings file plus CLI
// overrides and passed by reference into each packaging step.
package config
