package config_test

import (
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/cli/config"
)

func TestRepository_Configure(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest("memory", "").Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Close())
	})

	t.Run("sqlite backend", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "veille.db")
		repo, err := config.NewRepositoryForTest("sqlite", path).Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Close())
	})

	t.Run("sqlite backend requires a path", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("sqlite", "").Configure(t.Context())
		gt.Value(t, err).NotNil()
	})

	t.Run("firestore backend requires a project", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("firestore", "").Configure(t.Context())
		gt.Value(t, err).NotNil()
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("postgres", "").Configure(t.Context())
		gt.Value(t, err).NotNil()
	})
}

func TestImaging_Configure(t *testing.T) {
	t.Run("disabled when no endpoint is set", func(t *testing.T) {
		describer, editor, err := config.NewImagingForTest("", "").Configure()
		gt.NoError(t, err)
		gt.Value(t, describer).Nil()
		gt.Value(t, editor).Nil()
	})

	t.Run("both endpoints are required together", func(t *testing.T) {
		_, _, err := config.NewImagingForTest("https://caption.example.org", "").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("builds both clients", func(t *testing.T) {
		describer, editor, err := config.NewImagingForTest("https://caption.example.org", "https://edit.example.org").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, describer).NotNil()
		gt.Value(t, editor).NotNil()
	})
}

func TestLogger_Configure(t *testing.T) {
	t.Run("writes to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "veille.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()
		closer()
	})

	t.Run("rejects an unknown level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "json", "stdout").Configure()
		gt.Value(t, err).NotNil()
	})

	t.Run("rejects an unknown format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Value(t, err).NotNil()
	})
}
