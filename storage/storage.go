// Package storage archives report PDFs. Archived files are content
// addressed by their SHA-256 hash, matching the reports table's
// deduplication key, so the same document can never be stored twice.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Storage interface for archived PDF operations
type Storage interface {
	// Archive stores a report PDF under its content hash and returns the
	// storage path
	Archive(ctx context.Context, fileHash string, data io.Reader) (string, error)

	// Retrieve opens an archived PDF by storage path
	Retrieve(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes an archived PDF by storage path
	Delete(ctx context.Context, storagePath string) error
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	AWSAccessKey string
	AWSSecretKey string
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewStorageFromEnv creates a storage instance from environment variables
func NewStorageFromEnv() (Storage, error) {
	storageType := os.Getenv("STORAGE_TYPE")
	if storageType == "" {
		storageType = "local" // Default to local for development
	}

	cfg := StorageConfig{
		Type: StorageType(storageType),
	}

	switch StorageType(storageType) {
	case StorageTypeLocal:
		localPath := os.Getenv("STORAGE_LOCAL_PATH")
		if localPath == "" {
			localPath = "./storage/reports" // Default local archive path
		}
		cfg.LocalPath = localPath
		return NewLocalStorage(cfg.LocalPath)

	case StorageTypeS3:
		cfg.S3Bucket = os.Getenv("AWS_S3_BUCKET")
		cfg.S3Region = os.Getenv("AWS_REGION")
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1" // Default region
		}
		cfg.AWSAccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET environment variable is required for S3 storage")
		}

		return NewS3Storage(cfg)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
}

var errBadHash = errors.New("file hash must be a hex digest")

// archivePath derives the storage key from the content hash. The two-char
// prefix keeps any single directory from growing unboundedly.
func archivePath(fileHash string) (string, error) {
	if len(fileHash) < 8 {
		return "", errBadHash
	}
	return fmt.Sprintf("reports/%s/%s.pdf", fileHash[:2], fileHash), nil
}
