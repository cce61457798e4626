package hpvm

// Set at link time via -ldflags "-X".
var (
	Version   = "0.3.0"
	BuildDate = "unknown"
)
