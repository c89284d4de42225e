// Package app wires the dashboard server together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, an optional YAML file, .env and the environment
//	2. Initialize logging and OpenTelemetry
//	3. Load the rental dataset into a Store (a load failure is fatal)
//	4. Build the dashboard, health and export services
//	5. Set up HTTP handlers, the WebSocket hub and middleware
//	6. Optionally start the dataset watcher and the export scheduler
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run waits for SIGINT or SIGTERM and then stops, in order, the HTTP server,
// the WebSocket hub, the dataset watcher, the export scheduler and the
// telemetry providers.
//
// The package never calls os.Exit; errors are returned to main.
package app
