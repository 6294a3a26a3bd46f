package version

// Version is stamped at release build time via -ldflags.
var Version = "dev"
