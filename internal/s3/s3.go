package s3

import (
	"bytes"
	"context"
	"io"
	"path"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Client struct {
	mc *minio.Client
}

func New(endpoint, accessKey, secretKey string, useSSL bool) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &Client{mc: mc}, nil
}

// ManifestKey is the object key a run's dep5 file is archived under.
func ManifestKey(org, repo, runID string) string {
	return path.Join("manifests", org, repo, runID, "dep5")
}

func (c *Client) Upload(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	_, err := c.mc.PutObject(ctx, bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (c *Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// Archive stores manifests in a single bucket.
type Archive struct {
	Client *Client
	Bucket string
}

func (a *Archive) Put(ctx context.Context, key string, content []byte) error {
	return a.Client.Upload(ctx, a.Bucket, key, content, "text/plain; charset=utf-8")
}

func (a *Archive) Get(ctx context.Context, key string) ([]byte, error) {
	return a.Client.Download(ctx, a.Bucket, key)
}
