package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{"production default", "production", "", zapcore.InfoLevel, false},
		{"development default", "development", "", zapcore.DebugLevel, false},
		{"explicit level", "production", "warn", zapcore.WarnLevel, false},
		{"bad level", "production", "loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.env, tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !log.Core().Enabled(tt.want) {
				t.Errorf("уровень %v выключен", tt.want)
			}
			if tt.want > zapcore.DebugLevel && log.Core().Enabled(tt.want-1) {
				t.Errorf("уровень %v включён", tt.want-1)
			}
		})
	}
}
