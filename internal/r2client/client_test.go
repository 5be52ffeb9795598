package r2client

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// mockS3 is an in-memory ObjectAPI honoring If-None-Match.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
	failPut error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: map[string][]byte{}, ctypes: map[string]string{}}
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.failPut != nil {
		return nil, m.failPut
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := aws.ToString(in.Key)
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, ok := m.objects[key]; ok {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "exists"}
		}
	}
	m.objects[key] = data
	m.ctypes[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestPutObjectIfNotExists(t *testing.T) {
	t.Parallel()
	api := newMockS3()
	c := NewWithAPI(api, "assets")
	ctx := context.Background()

	created, err := c.PutObjectIfNotExists(ctx, "images/a.jpg", []byte("abc"), "image/jpeg")
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	if !created {
		t.Error("first put should create the object")
	}

	created, err = c.PutObjectIfNotExists(ctx, "images/a.jpg", []byte("abc"), "image/jpeg")
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if created {
		t.Error("second put should report an existing object")
	}
	if api.ctypes["images/a.jpg"] != "image/jpeg" {
		t.Errorf("content type = %q", api.ctypes["images/a.jpg"])
	}
}

func TestPutObjectIfNotExists_Error(t *testing.T) {
	t.Parallel()
	api := newMockS3()
	api.failPut = errors.New("network down")
	c := NewWithAPI(api, "assets")

	if _, err := c.PutObjectIfNotExists(context.Background(), "k", []byte("x"), ""); err == nil || !strings.Contains(err.Error(), "network down") {
		t.Errorf("expected wrapped network error, got %v", err)
	}
}

func TestHeadAndDelete(t *testing.T) {
	t.Parallel()
	c := NewWithAPI(newMockS3(), "assets")
	ctx := context.Background()

	if _, err := c.HeadObject(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := c.PutObjectIfNotExists(ctx, "k", []byte("12345"), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	size, err := c.HeadObject(ctx, "k")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if size != 5 {
		t.Errorf("size = %d, want 5", size)
	}

	if err := c.DeleteObject(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.HeadObject(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		err          error
		notFound     bool
		precondition bool
	}{
		{"no such key", &types.NoSuchKey{}, true, false},
		{"not found", &types.NotFound{}, true, false},
		{"api 404 code", &smithy.GenericAPIError{Code: "404"}, true, false},
		{"precondition", &smithy.GenericAPIError{Code: "PreconditionFailed"}, false, true},
		{"other", errors.New("boom"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.notFound {
				t.Errorf("isNotFound = %v, want %v", got, tt.notFound)
			}
			if got := isPreconditionFailed(tt.err); got != tt.precondition {
				t.Errorf("isPreconditionFailed = %v, want %v", got, tt.precondition)
			}
		})
	}
}

func TestConfig_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"complete", Config{Endpoint: "https://x", AccessKeyID: "a", SecretKey: "s", BucketName: "b"}, false},
		{"missing endpoint", Config{AccessKeyID: "a", SecretKey: "s", BucketName: "b"}, true},
		{"missing bucket", Config{Endpoint: "https://x", AccessKeyID: "a", SecretKey: "s"}, true},
		{"empty", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_RejectsIncompleteConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error for empty config")
	}
}
