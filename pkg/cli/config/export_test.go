package config

import "time"

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string, temperature, topP float64, maxTokens int) *Gemini {
	return &Gemini{
		projectID:   projectID,
		location:    location,
		temperature: temperature,
		topP:        topP,
		maxTokens:   maxTokens,
	}
}

// NewRetrievalForTest creates a Retrieval config for testing purposes
func NewRetrievalForTest(configPath, metasearchURL string, timeout, budget time.Duration, maxResults int) *Retrieval {
	return &Retrieval{
		configPath:      configPath,
		disableScraper:  true,
		metasearchURL:   metasearchURL,
		providerTimeout: timeout,
		budget:          budget,
		maxResults:      maxResults,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, sqlitePath string) *Repository {
	return &Repository{
		backend:    backend,
		sqlitePath: sqlitePath,
	}
}

// NewImagingForTest creates an Imaging config for testing purposes
func NewImagingForTest(describeURL, editURL string) *Imaging {
	return &Imaging{
		describeURL: describeURL,
		editURL:     editURL,
		timeout:     time.Second,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}
