package config

import "time"

// DefaultConfig returns the complete default configuration.
func DefaultConfig() *Config {
	return &Config{
		Crew:      DefaultCrewConfig(),
		LLM:       DefaultLLMConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultCrewConfig returns the default crew run settings.
func DefaultCrewConfig() CrewConfig {
	return CrewConfig{
		Name:          "performance-crew",
		AgentsFile:    "configs/agents.yaml",
		TasksFile:     "configs/tasks.yaml",
		Process:       "sequential",
		Verbose:       true,
		OutputFile:    "", // empty: the roster's final task decides
		MaxIterations: 10,
		Inputs: map[string]string{
			"query": "Show me the top 5 performing campaigns",
		},
	}
}

// DefaultLLMConfig returns the default provider settings.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   4096,
		Timeout:     2 * time.Minute,
		MaxRetries:  3,
	}
}

// DefaultDatabaseConfig returns the default database settings.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "perfcrew.db",
		Host:            "localhost",
		Port:            5432,
		User:            "perfcrew",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig returns the default cache settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled: false,
		Addr:    "localhost:6379",
		DB:      0,
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "console",
	}
}

// DefaultTelemetryConfig returns the default telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "perfcrew",
		SampleRate:   0.1,
	}
}
