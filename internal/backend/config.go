package backend

import (
	"fmt"

	"acctlog/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	cfg := Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:  appConfig.GoogleSpreadsheetID,
		GoogleDocumentsSheet: appConfig.GoogleDocumentsSheet,
		GoogleLocationsSheet: appConfig.GoogleLocationsSheet,
		SheetsPollInterval:   appConfig.SheetsPollInterval,

		DataDirectory: appConfig.DataDirectory,
	}

	// Credentials are only read when the sheets backend needs them
	if backendType == SheetsBackend {
		creds, err := appConfig.ServiceAccountJSON()
		if err != nil {
			return Config{}, fmt.Errorf("load sheets credentials: %w", err)
		}
		cfg.GoogleCredentials = creds
	}

	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if len(c.GoogleCredentials) == 0 {
			return fmt.Errorf("Google service account credentials are required for sheets backend")
		}

	case MemoryBackend:
		// DataDirectory will default to "data" if empty
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
