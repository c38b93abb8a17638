package config

type Config struct {
	Storage StorageConfig
	Assets  AssetsConfig
	Log     LogConfig
}

type StorageConfig struct {
	DataDir string
}

// AssetsConfig locates the per-device key-mapping bundle. An empty Dir
// means the bundle compiled into the binary.
type AssetsConfig struct {
	Dir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
	}
}

// Load reads configuration from the platform-native backend and environment
// variables.
//
// On macOS the backend is UserDefaults (domain: com.keyprefs.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/keyprefs/config.json.
//
// Environment variables (KEYPREFS_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}
