// Package forge is a minimal client of the Forgejo/Gitea HTTP API used to
// manage pull mirrors of upstream repositories.
//
// Every request goes through [Client.Perform] which waits out rate limiting.
// The forge answers '422 Unprocessable Entity' when too many migrations are
// requested, such request is retried as is after [RetryPolicy.Backoff].
// All other statuses are returned to the caller which decides what is
// an error and what isn't.
//
// # Logging:
//
// package takes slog reference for logging and prints logs up to 'trace' level
//
// Example:
//
//	loggerLevel  = new(slog.LevelVar)
//	levelStrings = map[string]slog.Level{
//		"trace": slog.Level(-8),
//		"debug": slog.LevelDebug,
//		"info":  slog.LevelInfo,
//		"warn":  slog.LevelWarn,
//		"error": slog.LevelError,
//	}
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//		Level: loggerLevel,
//	}))
//	loggerLevel.Set(levelStrings["trace"])
//
//	client, err := forge.New(conf, nil, logger)
//	if err != nil {
//		panic(err)
//	}
package forge
