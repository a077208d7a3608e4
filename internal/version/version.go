package version

const Version = "0.3.1"

// Environment is reported with captured errors so that development noise
// can be filtered out of the error tracker.
const Environment = "production"
