// Package backup mirrors snapshot files to S3-compatible storage
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/kjk/entitystore/atomicfile"
	"github.com/kjk/entitystore/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Access   string
	Secret   string
	Bucket   string
	Endpoint string
	Region   string
	// remote files are stored under Prefix + base name of local file
	Prefix string
	// if true, uses http instead of https
	Insecure     bool
	RequestTrace io.Writer
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("must provide config")
	}
	var missing []string
	if c.Access == "" {
		missing = append(missing, "Access")
	}
	if c.Secret == "" {
		missing = append(missing, "Secret")
	}
	if c.Bucket == "" {
		missing = append(missing, "Bucket")
	}
	if c.Endpoint == "" {
		missing = append(missing, "Endpoint")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

type Client struct {
	Client *minio.Client
	Bucket string
	prefix string
}

// New creates a client and checks that the bucket exists
func New(config *Config) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	c := config
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: !c.Insecure,
	})
	if err != nil {
		return nil, err
	}
	if c.RequestTrace != nil {
		mc.TraceOn(c.RequestTrace)
	}
	found, err := mc.BucketExists(ctx(), c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &Client{
		Client: mc,
		Bucket: c.Bucket,
		prefix: c.Prefix,
	}, nil
}

// RemotePath returns the name of the object for localPath
func (c *Client) RemotePath(localPath string) string {
	name := filepath.Base(localPath)
	if c.prefix == "" {
		return name
	}
	return path.Join(strings.TrimPrefix(c.prefix, "/"), name)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return "application/gzip"
	case ".zst", ".zstd":
		return "application/zstd"
	case ".br":
		return "application/x-brotli"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Push uploads localPath
func (c *Client) Push(localPath string) (minio.UploadInfo, error) {
	timeStart := time.Now()
	remotePath := c.RemotePath(localPath)
	opts := minio.PutObjectOptions{
		ContentType: contentTypeFor(localPath),
	}
	info, err := c.Client.FPutObject(ctx(), c.Bucket, remotePath, localPath, opts)
	if err != nil {
		return info, fmt.Errorf("upload of '%s' as '%s' failed: %w", localPath, remotePath, err)
	}
	log.EventWithDuration("backup.push", time.Since(timeStart), "path", localPath, "remote", remotePath, "size", info.Size)
	return info, nil
}

// Pull downloads the object for localPath and atomically replaces localPath
func (c *Client) Pull(localPath string) error {
	return c.PullTo(localPath, localPath)
}

// PullTo downloads the object for localPath and atomically writes it
// to dstPath. If the download fails, dstPath is not changed.
func (c *Client) PullTo(localPath string, dstPath string) error {
	timeStart := time.Now()
	remotePath := c.RemotePath(localPath)
	obj, err := c.Client.GetObject(ctx(), c.Bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	// ensure there's a dir for destination file
	if err = os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	f, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	n, err := io.Copy(f, obj)
	if err != nil {
		return fmt.Errorf("download of '%s' to '%s' failed: %w", remotePath, dstPath, err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	log.EventWithDuration("backup.pull", time.Since(timeStart), "path", dstPath, "remote", remotePath, "size", n)
	return nil
}

// Exists returns true if object for localPath exists
func (c *Client) Exists(localPath string) bool {
	_, err := c.Client.StatObject(ctx(), c.Bucket, c.RemotePath(localPath), minio.StatObjectOptions{})
	return err == nil
}

// Remove deletes the object for localPath
func (c *Client) Remove(localPath string) error {
	return c.Client.RemoveObject(ctx(), c.Bucket, c.RemotePath(localPath), minio.RemoveObjectOptions{})
}

// ConfigFromEnv reads config from ENTITYLOG_S3_* environment variables.
// Any non-empty ENTITYLOG_S3_INSECURE selects http.
func ConfigFromEnv() *Config {
	return &Config{
		Access:   os.Getenv("ENTITYLOG_S3_ACCESS"),
		Secret:   os.Getenv("ENTITYLOG_S3_SECRET"),
		Bucket:   os.Getenv("ENTITYLOG_S3_BUCKET"),
		Endpoint: os.Getenv("ENTITYLOG_S3_ENDPOINT"),
		Region:   os.Getenv("ENTITYLOG_S3_REGION"),
		Prefix:   os.Getenv("ENTITYLOG_S3_PREFIX"),
		// only for local S3-compatible servers
		Insecure: os.Getenv("ENTITYLOG_S3_INSECURE") != "",
	}
}

func ctx() context.Context {
	return context.Background()
}
