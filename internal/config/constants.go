package config

// Application info
const (
	AppName    = "BikePulse"
	AppVersion = "1.0.0"
)

// Environment and file defaults
const (
	EnvPrefix      = "BIKE"
	EnvFile        = ".env"
	ConfigFileEnv  = "BIKE_CONFIG_FILE"
	DefaultDataset = "data/all_data.csv"
)
