package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/alumnijourney/apiserver/config"
)

func TestNewFromConfigDisabled(t *testing.T) {
	s, err := NewFromConfig(context.Background(), config.StorageConfig{Backend: "none"})
	if err != nil || s != nil {
		t.Fatalf("expected nil storage, got %v %v", s, err)
	}
}

func TestNewFromConfigRejectsUnknownBackend(t *testing.T) {
	if _, err := NewFromConfig(context.Background(), config.StorageConfig{Backend: "ftp"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewFromConfigValidatesMinio(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.StorageConfig{
		Backend: "minio",
		Minio:   config.MinioConfig{Endpoint: "localhost:9000", Bucket: "b"},
	})
	if err == nil || !strings.Contains(err.Error(), "access key") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFromConfig(ctx, config.StorageConfig{Backend: "memory", Minio: config.MinioConfig{Bucket: "avatars"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Bucket() != "avatars" {
		t.Fatalf("unexpected bucket %q", s.Bucket())
	}

	if err := s.Put(ctx, "avatars/1", strings.NewReader("png"), 3, "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := s.Get(ctx, "avatars/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "png" {
		t.Fatalf("unexpected data %q", data)
	}

	if err := s.Delete(ctx, "avatars/1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "avatars/1"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}
