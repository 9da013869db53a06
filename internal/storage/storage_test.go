package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	if input.ContentType != nil {
		m.types[*input.Key] = *input.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestCleanKey(t *testing.T) {
	good := map[string]string{"a.png": "a.png", "staff/x.jpg": "staff/x.jpg", "staff//y.jpg": "staff/y.jpg"}
	for in, want := range good {
		got, err := cleanKey(in)
		if err != nil || got != want {
			t.Fatalf("cleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "  ", "/abs.png", "../up.png", "a/../../up.png", "..", `a\b.png`} {
		if _, err := cleanKey(bad); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("cleanKey(%q) expected ErrInvalidKey, got %v", bad, err)
		}
	}
}

func TestLocalStore_PutDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	st, err := NewLocalStore(dir, "/uploads/")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	url, err := st.Put(context.Background(), "staff/a.png", "image/png", strings.NewReader("PNGDATA"), 7)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "/uploads/staff/a.png" {
		t.Fatalf("unexpected url %q", url)
	}
	b, err := os.ReadFile(filepath.Join(dir, "staff", "a.png"))
	if err != nil || string(b) != "PNGDATA" {
		t.Fatalf("file content: %q err=%v", b, err)
	}

	if err := st.Delete(context.Background(), "staff/a.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "staff", "a.png")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	// Deleting again is fine.
	if err := st.Delete(context.Background(), "staff/a.png"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	st, err := NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if _, err := st.Put(context.Background(), "../evil.png", "", strings.NewReader("x"), 1); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestNewLocalStore_EmptyDir(t *testing.T) {
	if _, err := NewLocalStore("", "/uploads"); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestS3Store_PutDelete(t *testing.T) {
	mock := newMockS3()
	st := &S3Store{client: mock, bucket: "photos", baseURL: "https://cdn.example.com"}

	url, err := st.Put(context.Background(), "staff/b.jpg", "image/jpeg", strings.NewReader("JPEG"), 4)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "https://cdn.example.com/staff/b.jpg" {
		t.Fatalf("unexpected url %q", url)
	}
	if string(mock.objects["staff/b.jpg"]) != "JPEG" || mock.types["staff/b.jpg"] != "image/jpeg" {
		t.Fatalf("object not stored as expected: %+v %+v", mock.objects, mock.types)
	}

	if err := st.Delete(context.Background(), "staff/b.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := mock.objects["staff/b.jpg"]; ok {
		t.Fatalf("expected object deleted")
	}
}

func TestS3Store_Errors(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("boom")
	mock.delErr = errors.New("boom")
	st := &S3Store{client: mock, bucket: "photos", baseURL: "https://cdn"}

	if _, err := st.Put(context.Background(), "k.png", "", strings.NewReader("x"), 1); err == nil || !strings.Contains(err.Error(), "upload to s3") {
		t.Fatalf("expected wrapped upload error, got %v", err)
	}
	if err := st.Delete(context.Background(), "k.png"); err == nil || !strings.Contains(err.Error(), "delete from s3") {
		t.Fatalf("expected wrapped delete error, got %v", err)
	}
}

func TestNewS3Store_Validation(t *testing.T) {
	if _, err := NewS3Store(S3Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	if _, err := NewS3Store(S3Config{Bucket: "b"}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
	st, err := NewS3Store(S3Config{Bucket: "b", Region: "us-east-1", AccessKey: "k", SecretKey: "s", Endpoint: "http://minio:9000"})
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	if st.baseURL != "http://minio:9000/b" {
		t.Fatalf("unexpected base url %q", st.baseURL)
	}
}

func TestPublicBase(t *testing.T) {
	if got := publicBase(S3Config{Bucket: "b", Region: "eu-west-1"}); got != "https://b.s3.eu-west-1.amazonaws.com" {
		t.Fatalf("unexpected aws base %q", got)
	}
	if got := publicBase(S3Config{Bucket: "b", PublicBaseURL: "https://cdn"}); got != "https://cdn" {
		t.Fatalf("unexpected public base %q", got)
	}
}
