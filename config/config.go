// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
)

// DefaultEnvFile is read by Load and the CLIs when it exists.
const DefaultEnvFile = ".env"

// Config represents the application configuration
type Config struct {
	// Training
	DataPath      string
	ModelsDir     string
	TargetColumn  string
	TestSize      float64
	RandomState   int64
	CVFolds       int
	PlotsDir      string
	SortedClasses bool

	// Serving
	Addr string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads DefaultEnvFile if present, then the environment. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	return LoadFile(DefaultEnvFile)
}

// LoadFile is Load with an explicit .env path. A missing file is not an error.
func LoadFile(envFile string) (*Config, error) {
	cfg, err := Read(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds the Config from envFile and the environment without validating
// it. Callers that apply command-line overrides call Validate afterwards.
func Read(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "load %s", envFile)
		}
	}

	cfg := &Config{
		DataPath:      getEnv("SALES_DATA_PATH", "data/ventas_tiendas.csv"),
		ModelsDir:     getEnv("SALES_MODELS_DIR", "models"),
		TargetColumn:  getEnv("SALES_TARGET_COLUMN", ""),
		TestSize:      getEnvAsFloat("SALES_TEST_SIZE", 0.2),
		RandomState:   int64(getEnvAsInt("SALES_RANDOM_STATE", 42)),
		CVFolds:       getEnvAsInt("SALES_CV_FOLDS", 5),
		PlotsDir:      getEnv("SALES_PLOTS_DIR", ""),
		SortedClasses: getEnvAsBool("SALES_SORTED_CLASSES", false),
		Addr:          getEnv("SALES_ADDR", ":"+getEnv("PORT", "8000")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
	}
	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return errors.NewValidationError("SALES_TEST_SIZE", "must be in (0, 1)", c.TestSize)
	}
	if c.CVFolds < 2 {
		return errors.NewValidationError("SALES_CV_FOLDS", "must be at least 2", c.CVFolds)
	}
	if c.ModelsDir == "" {
		return errors.NewValidationError("SALES_MODELS_DIR", "is required", c.ModelsDir)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return errors.NewValidationError("LOG_FORMAT", "must be json or console", c.LogFormat)
	}
	return nil
}

// String renders the configuration for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("data=%s models=%s target=%q test_size=%g seed=%d cv=%d addr=%s",
		c.DataPath, c.ModelsDir, c.TargetColumn, c.TestSize, c.RandomState, c.CVFolds, c.Addr)
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		warnInvalid(key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		warnInvalid(key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		warnInvalid(key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func warnInvalid(key, value string, fallback interface{}) {
	errors.Warn(errors.NewDataConversionWarning(key, value, fmt.Sprint(fallback), "unparsable environment value, using default"))
}
