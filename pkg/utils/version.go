// Package utils provides small helpers shared across releaselens that do
// not warrant a package of their own.
package utils

// Build identification, overridden at link time via -ldflags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
