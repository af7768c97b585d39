package source

import (
	"context"
	"strings"
	"testing"
)

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		name       string
		ref        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{name: "simple", ref: "s3://papers/doc.pdf", wantBucket: "papers", wantKey: "doc.pdf"},
		{name: "nested key", ref: "s3://papers/2024/01/doc.pdf", wantBucket: "papers", wantKey: "2024/01/doc.pdf"},
		{name: "missing key", ref: "s3://papers", wantErr: true},
		{name: "missing bucket", ref: "s3:///doc.pdf", wantErr: true},
		{name: "wrong scheme", ref: "https://papers/doc.pdf", wantErr: true},
		{name: "plain path", ref: "/tmp/doc.pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q/%q", bucket, key)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if bucket != tt.wantBucket || key != tt.wantKey {
				t.Errorf("got %q/%q, want %q/%q", bucket, key, tt.wantBucket, tt.wantKey)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("s3://bucket/key.pdf") {
		t.Error("s3 URL should be remote")
	}
	if IsRemote("/tmp/doc.pdf") || IsRemote("doc.pdf") {
		t.Error("filesystem paths are not remote")
	}
}

func TestResolveLocalPassthrough(t *testing.T) {
	r := NewResolver(Credentials{}, nil)

	path, cleanup, err := r.Resolve(context.Background(), "/tmp/doc.pdf")
	defer cleanup()
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/doc.pdf" {
		t.Errorf("local path altered: %q", path)
	}
}

func TestResolveRemoteRequiresEndpoint(t *testing.T) {
	t.Setenv("UNTEX_S3_ENDPOINT", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	r := NewResolver(Credentials{}, nil)
	_, _, err := r.Resolve(context.Background(), "s3://bucket/key.pdf")
	if err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("expected endpoint error, got %v", err)
	}
}
