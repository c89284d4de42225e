// Package config loads the BikePulse configuration.
//
// Values are resolved in increasing order of precedence:
//
//  1. built-in defaults (Default)
//  2. an optional YAML file (BIKE_CONFIG_FILE, config.yaml or configs/config.yaml)
//  3. environment variables prefixed with BIKE_, optionally seeded from a .env file
//
// Nested sections map to underscore-joined names:
//
//	BIKE_SERVER_PORT=8080
//	BIKE_DATASET_FILE=data/all_data.csv
//	BIKE_DATASET_LOCALE=id
//	BIKE_EXPORT_SCHEDULE=@daily
package config
