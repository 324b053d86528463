/*
Package log provides structured logging for Fabric using zerolog.

The log package wraps the zerolog library to provide JSON-structured
logging with component-specific loggers and configurable log levels.
All logs include timestamps and support filtering by severity level.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages (production default)
  - Warn: Potential issues or unexpected conditions
  - Error: Operation failures that need investigation
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithWatcher: Add watcher name context
  - WithSessionID: Add agent session context

# Usage

Initializing the logger:

	import "github.com/monoco-io/fabric/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Structured logging:

	log.Logger.Info().
		Str("message_id", "msg-123").
		Str("provider", "dingtalk").
		Msg("Message claimed")

Component loggers:

	routerLog := log.WithComponent("router")
	routerLog.Debug().Str("event_type", "issue.stage_changed").Msg("Dispatching")

# Log Output Examples

JSON format (production):

	{"level":"info","component":"courier","time":"2026-02-10T10:30:00Z","message":"Message claimed"}
	{"level":"error","component":"watcher","watcher":"issues","error":"permission denied","time":"2026-02-10T10:30:02Z","message":"Scan failed"}

Console format (development):

	10:30:00 INF Message claimed component=courier
	10:30:02 ERR Scan failed component=watcher watcher=issues error="permission denied"

# Integration Points

This package integrates with:

  - pkg/artifact: Logs store and manifest operations
  - pkg/watcher: Logs scans, diffs, and emit failures
  - pkg/router: Logs rule matches and action outcomes
  - pkg/courier: Logs claims, retries, deadletter promotions
  - cmd/fabric: Initializes logging from configuration

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for machine-readable errors

Don't:
  - Log message bodies or webhook secrets
  - Use Debug level in production
  - Log in tight poll loops (log diffs, not scans)
  - Concatenate strings (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
