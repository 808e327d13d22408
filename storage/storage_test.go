package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/pilgi/component"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/storage"
	_ "github.com/kbukum/pilgi/storage/local"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{storage.UploadKey("abc", "talk.mp3"), "uploads/abc/talk.mp3"},
		{storage.UploadKey("abc", "../../etc/passwd"), "uploads/abc/passwd"},
		{storage.UploadKey("abc", `C:\Users\me\clip.wav`), "uploads/abc/clip.wav"},
		{storage.UploadKey("abc", ""), "uploads/abc/upload"},
		{storage.UploadKey("abc", ".."), "uploads/abc/upload"},
		{storage.ArtifactKey("transcription_1.txt"), "artifacts/transcription_1.txt"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{"local defaults", storage.Config{}, ""},
		{"s3 without bucket", storage.Config{Provider: storage.ProviderS3}, "bucket: is required"},
		{"s3 on minio", storage.Config{Provider: storage.ProviderS3, Bucket: "pilgi", Endpoint: "http://minio:9000"}, ""},
		{"bad endpoint", storage.Config{Provider: storage.ProviderS3, Bucket: "pilgi", Endpoint: "minio"}, "endpoint: must be a valid URL"},
		{"unknown", storage.Config{Provider: "ftp"}, "provider: must be one of"},
		{"negative upload cap", storage.Config{MaxFileSize: -1}, "max_file_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestComponentStoresUploadsAndArtifacts(t *testing.T) {
	ctx := context.Background()
	c := storage.NewComponent(storage.Config{BasePath: t.TempDir()}, logger.NewNop())

	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s: %s", h.Status, h.Message)
	}
	if d := c.Describe(); !strings.HasPrefix(d.Details, "provider=local path=") {
		t.Errorf("unexpected description %q", d.Details)
	}

	st := c.Storage()
	if err := st.Upload(ctx, storage.UploadKey("s1", "talk.mp3"), strings.NewReader("ID3")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := st.Upload(ctx, storage.ArtifactKey("transcription_1.txt"), strings.NewReader("hello")); err != nil {
		t.Fatalf("artifact: %v", err)
	}
	arts, err := st.List(ctx, storage.PrefixArtifacts)
	if err != nil || len(arts) != 1 || arts[0].Path != "artifacts/transcription_1.txt" || arts[0].Size != 5 {
		t.Errorf("artifacts = %+v, %v", arts, err)
	}
	ups, err := st.List(ctx, storage.PrefixUploads)
	if err != nil || len(ups) != 1 || ups[0].Path != "uploads/s1/talk.mp3" {
		t.Errorf("uploads = %+v, %v", ups, err)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.Storage() != nil {
		t.Error("expected storage to be released")
	}
}

func TestComponentUnknownProvider(t *testing.T) {
	c := storage.NewComponent(storage.Config{Provider: "ftp"}, logger.NewNop())
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
}
