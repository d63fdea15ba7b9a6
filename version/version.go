package version

// Version is set at build time with -ldflags "-X github.com/sphinxkit/htk2s3/version.Version=...".
var Version string = "0.0.0"
