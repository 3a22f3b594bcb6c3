package config

import "testing"

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "TM_PATH", "WORKER_COUNT", "TARGET_LOCALE", "LEVERAGE_THRESHOLD"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.DatabaseURL != "" || cfg.TMPath != "l10nkit-tm.db" {
		t.Errorf("tm = %q %q", cfg.DatabaseURL, cfg.TMPath)
	}
	if cfg.WorkerCount != 8 || cfg.LeverageThreshold != 0.75 {
		t.Errorf("workers = %d, threshold = %v", cfg.WorkerCount, cfg.LeverageThreshold)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("LEVERAGE_THRESHOLD", "0.9")
	t.Setenv("TARGET_LOCALE", "fr-FR")
	cfg := FromEnv()
	if cfg.WorkerCount != 3 || cfg.LeverageThreshold != 0.9 || cfg.TargetLocale != "fr-FR" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFromEnvBadNumbers(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	t.Setenv("LEVERAGE_THRESHOLD", "high")
	cfg := FromEnv()
	if cfg.WorkerCount != 8 || cfg.LeverageThreshold != 0.75 {
		t.Errorf("workers = %d, threshold = %v", cfg.WorkerCount, cfg.LeverageThreshold)
	}
}
