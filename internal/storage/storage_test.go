package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/winchzone/dashboard/internal/config"
)

type fakePut struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePut) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{ETag: aws.String(`"abc123"`)}, nil
}

func TestS3UploadUsesPublicBase(t *testing.T) {
	put := &fakePut{}
	u := &S3Uploader{client: put, cfg: S3Config{Bucket: "winch", Region: "auto", PublicURL: "https://cdn.winch.zone/"}}

	res, err := u.Upload(context.Background(), UploadInput{Key: "trip_photos/42/pickup_1_front car.jpg", Body: []byte("jpeg"), ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.URL != "https://cdn.winch.zone/trip_photos/42/pickup_1_front%20car.jpg" {
		t.Fatalf("unexpected url %s", res.URL)
	}
	if res.ETag != "abc123" {
		t.Fatalf("unexpected etag %s", res.ETag)
	}
	if aws.ToString(put.input.Bucket) != "winch" || aws.ToString(put.input.ContentType) != "image/jpeg" {
		t.Fatalf("unexpected put input %+v", put.input)
	}
	if string(put.body) != "jpeg" {
		t.Fatalf("body not forwarded: %q", put.body)
	}
}

func TestS3UploadRejectsEmptyBody(t *testing.T) {
	u := &S3Uploader{client: &fakePut{}, cfg: S3Config{Bucket: "winch", Region: "auto"}}
	if _, err := u.Upload(context.Background(), UploadInput{Key: "a"}); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestS3UploadWrapsClientError(t *testing.T) {
	boom := errors.New("access denied")
	u := &S3Uploader{client: &fakePut{err: boom}, cfg: S3Config{Bucket: "winch", Region: "auto"}}
	_, err := u.Upload(context.Background(), UploadInput{Key: "a", Body: []byte("x")})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestS3PublicURLFallbacks(t *testing.T) {
	endpoint := &S3Uploader{cfg: S3Config{Bucket: "winch", Endpoint: "https://r2.example.com/"}}
	if got := endpoint.PublicURL("customer_docs/1/tax_id_a.pdf"); got != "https://r2.example.com/winch/customer_docs/1/tax_id_a.pdf" {
		t.Fatalf("unexpected endpoint url %s", got)
	}
	hosted := &S3Uploader{cfg: S3Config{Bucket: "winch", Region: "eu-west-1"}}
	if got := hosted.PublicURL("k"); got != "https://winch.s3.eu-west-1.amazonaws.com/k" {
		t.Fatalf("unexpected aws url %s", got)
	}
}

func TestMemoryUploaderOverwrites(t *testing.T) {
	m := NewMemoryUploader("http://files.local/")
	ctx := context.Background()
	if _, err := m.Upload(ctx, UploadInput{Key: "/a/b.jpg", Body: []byte("one")}); err != nil {
		t.Fatalf("upload: %v", err)
	}
	res, err := m.Upload(ctx, UploadInput{Key: "a/b.jpg", Body: []byte("two")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.URL != "http://files.local/a/b.jpg" {
		t.Fatalf("unexpected url %s", res.URL)
	}
	obj, ok := m.Object("a/b.jpg")
	if !ok || string(obj.Body) != "two" {
		t.Fatalf("expected overwrite, got %+v", obj)
	}
	if len(m.Keys()) != 1 {
		t.Fatalf("expected a single key, got %v", m.Keys())
	}
}

func TestNewSelectsProvider(t *testing.T) {
	up, err := New(context.Background(), config.StorageConfig{Provider: "noop"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := up.Upload(context.Background(), UploadInput{Key: "k", Body: []byte("x")}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	if _, err := New(context.Background(), config.StorageConfig{Provider: "ftp"}); err == nil {
		t.Fatal("expected unknown provider error")
	}
	if _, err := New(context.Background(), config.StorageConfig{Provider: "s3"}); err == nil {
		t.Fatal("expected validation error for empty s3 config")
	}
}
