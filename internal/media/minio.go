// Package media uploads user photos to S3-compatible object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Object key prefixes per upload kind.
const (
	FolderComplaints = "clean_street/complaints"
	FolderProfiles   = "clean_street/profiles"
	FolderComments   = "clean_street/comments"
)

var ErrNotConfigured = errors.New("photo storage is not configured")

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// File is one uploaded photo as received from a multipart form.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL prefixes object keys in returned URLs. Defaults to the endpoint plus bucket.
	PublicURL string
}

// Store writes photos to a single bucket.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

func NewStore(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, ErrNotConfigured
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	publicURL := strings.TrimRight(opts.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, opts.Endpoint, opts.Bucket)
	}

	return &Store{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: publicURL,
		now:       time.Now,
	}, nil
}

// EnsureBucket creates the bucket on first start.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Upload stores file under folder and returns its public URL.
func (s *Store) Upload(ctx context.Context, folder string, file File) (string, error) {
	if s == nil {
		return "", ErrNotConfigured
	}
	objectName := ObjectName(folder, file.Name, s.now(), uploadToken())
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, objectName, file.Body, file.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectName, err)
	}
	return s.publicURL + "/" + objectName, nil
}

// ObjectName builds "<folder>/<unix millis>_<token>_<sanitized filename>".
// The token keeps same-named photos uploaded together from sharing a key.
func ObjectName(folder, filename string, now time.Time, token string) string {
	return fmt.Sprintf("%s/%d_%s_%s", strings.Trim(folder, "/"), now.UnixMilli(), token, SanitizeFilename(filename))
}

func uploadToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// SanitizeFilename keeps only letters, digits, dot, underscore and dash.
func SanitizeFilename(name string) string {
	safe := unsafeFilenameChars.ReplaceAllString(name, "")
	if safe == "" {
		return "photo.jpg"
	}
	return safe
}
