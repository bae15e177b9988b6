package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/cli/config"
)

func TestGemini_Configure(t *testing.T) {
	t.Run("returns nil client when project ID is empty", func(t *testing.T) {
		cfg := config.NewGeminiForTest("", "europe-west1", 0.7, 0.95, 1024)
		client, err := cfg.Configure(t.Context())
		gt.NoError(t, err)
		gt.Value(t, client).Nil()
	})

	t.Run("returns flags", func(t *testing.T) {
		cfg := config.NewGeminiForTest("", "", 0, 0, 0)
		flags := cfg.Flags()
		gt.Value(t, len(flags)).Equal(6)
	})
}

func TestGemini_Validate(t *testing.T) {
	tests := []struct {
		name        string
		temperature float64
		topP        float64
		maxTokens   int
		wantErr     bool
	}{
		{name: "defaults", temperature: 0.7, topP: 0.95, maxTokens: 1024},
		{name: "zero temperature", temperature: 0, topP: 1, maxTokens: 1},
		{name: "negative temperature", temperature: -0.1, topP: 0.95, maxTokens: 1024, wantErr: true},
		{name: "temperature too high", temperature: 2.5, topP: 0.95, maxTokens: 1024, wantErr: true},
		{name: "zero top-p", temperature: 0.7, topP: 0, maxTokens: 1024, wantErr: true},
		{name: "top-p above one", temperature: 0.7, topP: 1.5, maxTokens: 1024, wantErr: true},
		{name: "zero max tokens", temperature: 0.7, topP: 0.95, maxTokens: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.NewGeminiForTest("project", "europe-west1", tt.temperature, tt.topP, tt.maxTokens).Validate()
			if tt.wantErr {
				gt.Value(t, err).NotNil()
			} else {
				gt.NoError(t, err)
			}
		})
	}
}
