// Package config builds the worker configuration from an optional .env file,
// an optional config.yaml and environment variables, and validates it.
package config
