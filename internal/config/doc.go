// Package config provides configuration management for the launch orchestrator.
//
// Configuration is loaded from environment variables using the env package,
// after variables from an optional .env file. All configuration values have
// defaults suitable for a single desktop host.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
