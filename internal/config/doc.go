// Package config provides configuration management for the live session
// poller.
//
// Configuration is loaded from environment variables using the env package.
// SESSION_ID and POLL_INTERVAL_SECONDS are required; everything else has a
// default suitable for local use.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("polling %s every %s\n", cfg.Session.ID, cfg.PollInterval())
package config
