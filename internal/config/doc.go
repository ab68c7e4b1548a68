// Package config holds the immutable configuration for one acquisition
// operation and the loader for the .trawl roster file.
package config
