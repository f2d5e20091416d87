// Package config loads config.yml into AppConfig.
//
// Struct tags drive validation; defaults are filled in afterwards so a minimal
// file with one feed is enough. Watch re-reads the file whenever it changes on
// disk, which lets playback settings be tuned on a running server.
package config
