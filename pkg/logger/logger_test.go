package logger

import (
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &Config{Level: "info"},
			wantErr: false,
		},
		{
			name:    "valid config with debug level",
			cfg:     &Config{Level: "debug"},
			wantErr: false,
		},
		{
			name:    "empty level defaults to info",
			cfg:     &Config{},
			wantErr: false,
		},
		{
			name:    "no-color console output",
			cfg:     &Config{Level: "info", NoColor: true},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &Config{Level: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestNewWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crawl.log")
	logger, err := New(&Config{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New() with file output failed: %v", err)
	}
	logger.Info("hello")
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	base, err := New(&Config{Level: "info"})
	if err != nil {
		t.Fatal(err)
	}

	child := base.WithField("category", "Sneakers")
	grandchild := child.WithFields(map[string]interface{}{"page": 2})

	if base == child || child == grandchild {
		t.Error("WithField(s) must return a new logger instance")
	}
	// All three are usable independently
	base.Info("base")
	child.Info("child")
	grandchild.Info("grandchild")
}

func TestGetLoggerFallback(t *testing.T) {
	globalLogger = nil
	if GetLogger() == nil {
		t.Error("GetLogger() must create a default logger when uninitialized")
	}
}
