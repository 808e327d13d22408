// Package app assembles pilgi from its configuration: the HTTP service for
// `pilgi serve` and the model task behind the one-shot CLI commands.
package app
