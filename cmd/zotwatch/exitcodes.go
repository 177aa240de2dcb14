package main

// Exit codes used by the CLI.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing config, invalid settings)
	ExitNoProfile   = 3 // Profile artifacts missing; run profile build first
)
