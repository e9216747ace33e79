package version

// Current defines the application version.
// It defaults to "dev" and is overwritten at build time using -ldflags.
var Current = "dev"

// AppName is the binary and tracer-scope name.
const AppName = "cloudgov"
