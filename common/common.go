package common

import "sync/atomic"

// Version is stamped at build time via -ldflags.
var Version = "v0.1.0-dev"

// Database backend flags, set during model.InitDB. Atomic because tests
// flip them while handlers may be reading.
var (
	UsingSQLite     atomic.Bool
	UsingPostgreSQL atomic.Bool
	UsingMySQL      atomic.Bool
)
