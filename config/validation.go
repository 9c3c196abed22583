package config

import (
	"fmt"
)

func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Extractor.Validate(); err != nil {
		return fmt.Errorf("extractor config: %w", err)
	}

	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger config: %w", err)
	}

	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required - set STORAGE_BUCKET environment variable")
	}
	return nil
}

func (c *ExtractorConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required - set EXTRACTOR_ENDPOINT environment variable")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api key is required - set EXTRACTOR_API_KEY environment variable")
	}
	return nil
}

func (c *LedgerConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required - set LEDGER_BASE_URL environment variable")
	}
	if c.TokenURL == "" {
		return fmt.Errorf("token url is required - set LEDGER_TOKEN_URL environment variable")
	}
	return nil
}
