package logging

import "context"

type contextKey struct{}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
			return logger
		}
	}
	return GetGlobalLogger()
}

// IntoContext returns a copy of ctx carrying logger.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// LoggerForPool returns a logger tagged with a MAC pool name.
func LoggerForPool(name string) *Logger {
	return GetGlobalLogger().WithValues("pool", name)
}

// LoggerForServer returns a logger for one pool service endpoint.
func LoggerForServer(endpoint string) *Logger {
	return GetGlobalLogger().WithName("server").WithValues("endpoint", endpoint)
}

// LoggerForCLI returns a logger for the macrange command line.
func LoggerForCLI(command string) *Logger {
	return GetGlobalLogger().WithName("cli").WithValues("command", command)
}
