package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound    = goerr.New("configuration file not found")
	ErrInvalidConfig     = goerr.New("invalid configuration")
	ErrDuplicateBucketID = goerr.New("duplicate bucket ID")
	ErrMissingName       = goerr.New("name is required")
	ErrMissingKeywords   = goerr.New("bucket requires keywords")
	ErrMissingSources    = goerr.New("bucket requires sources")
	ErrInvalidSourceURL  = goerr.New("invalid source URL")
)

// Context keys for error values
const (
	ConfigPathKey   = "config_path"
	BucketIDKey     = "bucket_id"
	BucketLabelKey  = "bucket_label"
	SourceURLKey    = "source_url"
	SourceIndexKey  = "source_index"
	KeywordIndexKey = "keyword_index"
)
