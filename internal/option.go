package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	logOut  io.Writer
	out     io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(version string) Option {
	return func(a *application) {
		a.version = version
	}
}

// WithLogOutput redirects the JSON logger. Commands whose stdout carries a
// protocol or rendered output log to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithOutput sets where one-shot commands write their result.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
