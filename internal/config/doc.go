// Package config provides configuration loading, merging, and validation
// for the field sync client.
//
// Configuration is assembled from multiple sources in the following priority
// order (later sources override earlier non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON config file
//
// [GetStructuredConfig] returns the raw merged values; [GetClientConfig]
// applies defaults and validates the result.
package config
