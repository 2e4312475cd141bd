package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUploadRequiresCredentialsAtUploadTime(t *testing.T) {
	// Construction must not validate anything.
	store := NewMinioStore(Config{Endpoint: "s3.example.com", Bucket: "covers"})

	_, err := store.Upload(context.Background(), "stories/x/cover.png", strings.NewReader("data"), 4, "image/png")
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestUploadRequiresBucket(t *testing.T) {
	store := NewMinioStore(Config{
		Endpoint:  "s3.example.com",
		AccessKey: "key",
		SecretKey: "secret",
	})

	_, err := store.Upload(context.Background(), "k", strings.NewReader("data"), 4, "image/png")
	if !errors.Is(err, ErrMissingBucket) {
		t.Fatalf("expected missing bucket error, got %v", err)
	}
}

func TestUploadRequiresEndpoint(t *testing.T) {
	store := NewMinioStore(Config{
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "covers",
	})

	_, err := store.Upload(context.Background(), "k", strings.NewReader("data"), 4, "image/png")
	if !errors.Is(err, ErrMissingEndpoint) {
		t.Fatalf("expected missing endpoint error, got %v", err)
	}
}

func TestPublicURLShape(t *testing.T) {
	store := NewMinioStore(Config{
		Endpoint: "s3.us-east-1.example.com",
		Bucket:   "covers",
		UseSSL:   true,
	})
	got := store.publicURL("stories/x/cover.png")
	want := "https://s3.us-east-1.example.com/covers/stories/x/cover.png"
	if got != want {
		t.Fatalf("publicURL = %q, want %q", got, want)
	}
}

func TestPublicURLPrefersConfiguredBase(t *testing.T) {
	store := NewMinioStore(Config{
		Endpoint:  "s3.example.com",
		Bucket:    "covers",
		PublicURL: "https://cdn.example.com/",
	})
	got := store.publicURL("/cover.png")
	if got != "https://cdn.example.com/covers/cover.png" {
		t.Fatalf("unexpected public URL %q", got)
	}
}
