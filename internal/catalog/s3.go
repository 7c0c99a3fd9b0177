package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
)

const checksumMetadataKey = "sha256"

type ObjectStore interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader mirrors an output tree into a bucket.
type Uploader struct {
	log    *logrus.Logger
	store  ObjectStore
	bucket *string
}

func NewUploader(log *logrus.Logger, store ObjectStore, bucket *string) *Uploader {
	return &Uploader{log: log, store: store, bucket: bucket}
}

// ContentType returns the content type served for a file of the tree.
func ContentType(f File) string {
	switch path.Ext(f.Path) {
	case ".json":
		return "application/json"
	case ".html":
		return "text/html; charset=utf-8"
	}
	return mimetype.Detect(f.Data).String()
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

// Upload puts files in order, skipping objects whose stored checksum matches.
// It returns the number of uploaded objects.
func (u *Uploader) Upload(ctx context.Context, files Files) (int, error) {
	uploaded := 0
	for _, f := range files {
		checksum := digest.Canonical.FromBytes(f.Data).Encoded()
		key := f.Path
		head, err := u.store.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: u.bucket,
			Key:    &key,
		})
		if err == nil && head.Metadata[checksumMetadataKey] == checksum {
			u.log.Debugf("%s is up to date", key)
			continue
		}
		if err != nil && !isNotFound(err) {
			return uploaded, fmt.Errorf("could not check if %s exists: %w", key, err)
		}

		_, err = u.store.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      u.bucket,
			Key:         &key,
			Body:        bytes.NewReader(f.Data),
			ContentType: aws.String(ContentType(f)),
			Metadata: map[string]string{
				checksumMetadataKey: checksum,
			},
		})
		if err != nil {
			return uploaded, fmt.Errorf("could not upload %s: %w", key, err)
		}
		u.log.Debugf("uploaded %s", key)
		uploaded++
	}
	return uploaded, nil
}
