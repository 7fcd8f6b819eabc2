package config

// NewAppConfigForTest creates an AppConfig pointed at a TOML file
func NewAppConfigForTest(path string) *AppConfig {
	return &AppConfig{path: path}
}

// NewWeComForTest creates a WeCom config for testing purposes
func NewWeComForTest(corpID, secret, callbackToken, encodingAESKey string) *WeCom {
	return &WeCom{
		corpID:         corpID,
		secret:         secret,
		callbackToken:  callbackToken,
		encodingAESKey: encodingAESKey,
	}
}

// NewStoreForTest creates a Store config for testing purposes
func NewStoreForTest(backend, dataDir string, baseline, cutoff int64) *Store {
	return &Store{
		backend:  backend,
		dataDir:  dataDir,
		baseline: baseline,
		cutoff:   cutoff,
	}
}

// NewSchedulerForTest creates a Scheduler config for testing purposes
func NewSchedulerForTest(syncSpec string, syncEnabled bool, checkSpec string, checkEnabled bool) *Scheduler {
	return &Scheduler{
		syncSpec:     syncSpec,
		syncEnabled:  syncEnabled,
		checkSpec:    checkSpec,
		checkEnabled: checkEnabled,
	}
}
