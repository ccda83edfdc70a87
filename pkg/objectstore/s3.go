package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	UseSSL       bool
	// VirtualHostStyle forces bucket-in-host addressing instead of
	// path-style requests.
	VirtualHostStyle bool
	// DisableCredentialLoader skips the env/file/IAM credential chain when
	// no static keys are provided, leaving the client anonymous.
	DisableCredentialLoader bool
}

type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	// Strip http:// or https:// from endpoint if present
	// minio-go expects just the host:port, not a full URL
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	if strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimPrefix(endpoint, "https://")
		secure = true
	} else if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	}

	var creds *credentials.Credentials
	switch {
	case cfg.AccessKey != "":
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)
	case cfg.DisableCredentialLoader:
		creds = credentials.NewStaticV4("", "", "")
	default:
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}

	lookup := minio.BucketLookupAuto
	if cfg.VirtualHostStyle {
		lookup = minio.BucketLookupDNS
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        creds,
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, s.mapError(err)
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, s.mapError(err)
	}

	info := &ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ETag:         strings.Trim(stat.ETag, "\""),
		LastModified: stat.LastModified,
		ContentType:  stat.ContentType,
	}

	return obj, info, nil
}

func (s *S3Store) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.mapError(err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ETag:         strings.Trim(stat.ETag, "\""),
		LastModified: stat.LastModified,
		ContentType:  stat.ContentType,
	}, nil
}

func (s *S3Store) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	listOpts := minio.ListObjectsOptions{Recursive: true}

	maxKeys := 1000
	if opts != nil {
		listOpts.Prefix = opts.Prefix
		listOpts.StartAfter = opts.Marker
		if opts.MaxKeys > 0 {
			listOpts.MaxKeys = opts.MaxKeys
			maxKeys = opts.MaxKeys
		}
	}

	result := &ListResult{}
	objCh := s.client.ListObjects(ctx, s.bucket, listOpts)

	for obj := range objCh {
		if obj.Err != nil {
			return nil, s.mapError(obj.Err)
		}

		result.Objects = append(result.Objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         strings.Trim(obj.ETag, "\""),
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
		})

		if len(result.Objects) >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = obj.Key
			break
		}
	}

	return result, nil
}

func (s *S3Store) mapError(err error) error {
	if err == nil {
		return nil
	}

	errResp := minio.ToErrorResponse(err)
	switch errResp.Code {
	case "NoSuchKey":
		return ErrNotFound
	case "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %s", ErrUnavailable, errResp.Code)
	}

	switch errResp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Connection-level failures carry no S3 error code at all.
	if errResp.Code == "" {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return err
}
