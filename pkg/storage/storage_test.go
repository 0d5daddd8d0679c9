package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// stores returns one of each FileStore implementation.
func stores(t *testing.T) map[string]FileStore {
	t.Helper()
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]FileStore{
		"local":  local,
		"memory": NewMemory(),
		"s3":     NewS3(newMockS3(), "models", "runs"),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, fs := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if ok, err := fs.Exists(ctx, "ckpt/model.mdl"); err != nil || ok {
				t.Fatalf("Exists before write = %v, %v", ok, err)
			}
			if _, err := fs.Read(ctx, "ckpt/model.mdl"); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("Read missing: expected os.ErrNotExist, got %v", err)
			}

			if err := WriteFile(ctx, fs, "ckpt/model.mdl", []byte("epoch 1")); err != nil {
				t.Fatal(err)
			}
			if err := WriteFile(ctx, fs, "ckpt/model.mdl", []byte("epoch 2")); err != nil {
				t.Fatal(err)
			}
			got, err := ReadFile(ctx, fs, "ckpt/model.mdl")
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "epoch 2" {
				t.Fatalf("ReadFile = %q, want %q", got, "epoch 2")
			}
			if ok, err := fs.Exists(ctx, "ckpt/model.mdl"); err != nil || !ok {
				t.Fatalf("Exists after write = %v, %v", ok, err)
			}

			if err := fs.Delete(ctx, "ckpt/model.mdl"); err != nil {
				t.Fatal(err)
			}
			if err := fs.Delete(ctx, "ckpt/model.mdl"); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
			if ok, _ := fs.Exists(ctx, "ckpt/model.mdl"); ok {
				t.Fatal("file still exists after Delete")
			}
		})
	}
}

func TestCloseWithErrorKeepsPreviousFile(t *testing.T) {
	ctx := context.Background()
	encodeErr := errors.New("encode failed")
	for name, fs := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := WriteFile(ctx, fs, "model.mdl", []byte("best")); err != nil {
				t.Fatal(err)
			}
			w, err := fs.Write(ctx, "model.mdl")
			if err != nil {
				t.Fatal(err)
			}
			if _, err := io.WriteString(w, "half"); err != nil {
				t.Fatal(err)
			}
			if err := w.CloseWithError(encodeErr); !errors.Is(err, encodeErr) {
				t.Fatalf("CloseWithError = %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close after abort: %v", err)
			}
			got, err := ReadFile(ctx, fs, "model.mdl")
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "best" {
				t.Fatalf("after abort = %q, want best", got)
			}
		})
	}
}

func TestLocalAbortLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	w, err := fs.Write(context.Background(), "model.mdl")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "partial")
	w.CloseWithError(errors.New("boom"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("leftover files after abort: %d", len(entries))
	}
}

func TestLocalWriteIsAtomic(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(ctx, fs, "model.mdl", []byte("old")); err != nil {
		t.Fatal(err)
	}

	w, err := fs.Write(ctx, "model.mdl")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, "new content"); err != nil {
		t.Fatal(err)
	}
	// Readers still see the previous version until Close.
	got, err := ReadFile(ctx, fs, "model.mdl")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "old" {
		t.Fatalf("before Close = %q, want old", got)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	got, _ = ReadFile(ctx, fs, "model.mdl")
	if string(got) != "new content" {
		t.Fatalf("after Close = %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("leftover files: %v", names)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in   string
		want Location
	}{
		{"models/emotion_model.mdl", Location{Dir: "models", Name: "emotion_model.mdl"}},
		{"emotion_model.mdl", Location{Dir: ".", Name: "emotion_model.mdl"}},
		{"s3://bucket/emotion_model.mdl", Location{Bucket: "bucket", Name: "emotion_model.mdl"}},
		{"s3://bucket/a/b/m.mdl", Location{Bucket: "bucket", Dir: "a/b", Name: "m.mdl"}},
	}
	for _, tt := range tests {
		got, err := ParseLocation(tt.in)
		if err != nil {
			t.Errorf("ParseLocation(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "s3://bucket", "s3:///key"} {
		if _, err := ParseLocation(bad); err == nil {
			t.Errorf("ParseLocation(%q): expected error", bad)
		}
	}
}

func TestOpenLocal(t *testing.T) {
	dir := t.TempDir()
	fs, name, err := Open(filepath.Join(dir, "models", "m.mdl"), S3Config{})
	if err != nil {
		t.Fatal(err)
	}
	if name != "m.mdl" {
		t.Fatalf("name = %q", name)
	}
	if err := WriteFile(context.Background(), fs, name, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "models", "m.mdl")); err != nil {
		t.Fatal(err)
	}
}

func TestS3KeysUsePrefix(t *testing.T) {
	mock := newMockS3()
	fs := NewS3(mock, "models", "runs/2026")
	if err := WriteFile(context.Background(), fs, "emotion_model.mdl", []byte("w")); err != nil {
		t.Fatal(err)
	}
	if _, ok := mock.objects["runs/2026/emotion_model.mdl"]; !ok {
		t.Fatalf("objects = %v", mock.objects)
	}
	if mock.lastLength != 1 {
		t.Fatalf("ContentLength = %d, want 1", mock.lastLength)
	}
}

func TestS3Errors(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	mock.err = errors.New("network timeout")
	fs := NewS3(mock, "models", "")

	if _, err := fs.Read(ctx, "x"); err == nil || errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read: got %v", err)
	}
	if _, err := fs.Exists(ctx, "x"); err == nil {
		t.Fatal("Exists: expected error")
	}
	if err := WriteFile(ctx, fs, "x", []byte("y")); err == nil {
		t.Fatal("Write: expected error from Close")
	}
}

func TestNewS3ClientNeedsCredentials(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	if _, err := NewS3Client(S3Config{}); err == nil {
		t.Fatal("expected error without credentials")
	}
	t.Setenv("AWS_ACCESS_KEY_ID", "id")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	c, err := NewS3Client(S3Config{Endpoint: "http://localhost:9000", PathStyle: true})
	if err != nil {
		t.Fatal(err)
	}
	if c.Options().Region != "us-east-1" {
		t.Fatalf("region = %q", c.Options().Region)
	}
}

type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// mockS3 is an in-memory S3Client.
type mockS3 struct {
	mu         sync.Mutex
	objects    map[string][]byte
	err        error
	lastLength int64
}

func newMockS3() *mockS3 { return &mockS3{objects: make(map[string][]byte)} }

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*in.Key] = data
	if in.ContentLength != nil {
		m.lastLength = *in.ContentLength
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}
