package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type LocalObjectStore struct {
	baseDir string
}

var _ ObjectStore = (*LocalObjectStore)(nil)

func NewLocalObjectStore(dir string) (*LocalObjectStore, error) {
	baseDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}

	if err := os.MkdirAll(baseDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", baseDir, err)
	}

	return &LocalObjectStore{baseDir: baseDir}, nil
}

func (s *LocalObjectStore) BaseDir() string {
	return s.baseDir
}

func (s *LocalObjectStore) CreateBucket(ctx context.Context, bucket string) error {
	if err := os.MkdirAll(localStorageFullpath(s.baseDir, bucket, ""), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *LocalObjectStore) PutObject(ctx context.Context, bucket, key string, data io.Reader) error {
	path := localStorageFullpath(s.baseDir, bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s/%s: %w", bucket, key, err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s/%s: %w", bucket, key, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, data); err != nil {
		return fmt.Errorf("failed to write file %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *LocalObjectStore) DeleteObjects(ctx context.Context, bucket, prefix string) error {
	if bucket == "" && prefix == "" {
		return fmt.Errorf("refusing to delete store root %s", s.baseDir)
	}

	fullPath := localStorageFullpath(s.baseDir, bucket, prefix)
	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("failed to delete objects in %s: %w", fullPath, err)
	}
	return nil
}

func (s *LocalObjectStore) UploadDir(ctx context.Context, bucket, prefix, src string) error {
	if err := s.DeleteObjects(ctx, bucket, prefix); err != nil {
		return fmt.Errorf("failed to remove existing destination: %w", err)
	}

	destPath := localStorageFullpath(s.baseDir, bucket, prefix)
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", destPath, err)
	}

	if err := copyTree(src, destPath); err != nil {
		return fmt.Errorf("error uploading directory %s to %s: %w", src, destPath, err)
	}

	return nil
}

func (s *LocalObjectStore) Location(bucket, prefix string) string {
	return localStorageFullpath(s.baseDir, bucket, prefix)
}
