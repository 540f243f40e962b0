package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"colsync/internal/config"
	"colsync/internal/snapshot"
)

// S3Vault stores snapshots in an S3 bucket (or an S3-compatible endpoint)
// using the same layout as FileSystemVault below an optional key prefix:
//
//	<prefix>/snapshots/<hostID>/<id>.age
//	<prefix>/snapshots/<hostID>/<id>.toml
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Vault loads AWS configuration and creates an S3 client. Static
// credentials from the config take precedence over the default chain.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Vault{
		name:     cfg.Name,
		bucket:   cfg.S3Bucket,
		prefix:   strings.Trim(cfg.S3Prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (v *S3Vault) hostPrefix(hostID string) string {
	return path.Join(v.prefix, "snapshots", hostID) + "/"
}

func (v *S3Vault) key(hostID, name string) string {
	return v.hostPrefix(hostID) + name
}

// PutSnapshot uploads the payload with the multipart uploader, then the manifest.
func (v *S3Vault) PutSnapshot(m snapshot.Manifest, r io.Reader) error {
	if m.HostID == "" || m.ID == "" {
		return fmt.Errorf("snapshot manifest requires host id and id")
	}
	ctx := context.Background()
	payloadKey := v.key(m.HostID, m.ID+payloadSuffix)

	body := &countingReader{r: r}
	if _, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(payloadKey),
		Body:   body,
	}); err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}
	if body.n != m.Size {
		v.deleteKeys(ctx, payloadKey)
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", m.Size, body.n)
	}

	var buf bytes.Buffer
	if err := snapshot.EncodeManifest(&buf, m); err != nil {
		return err
	}
	if _, err := v.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(v.key(m.HostID, m.ID+manifestSuffix)),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/toml"),
	}); err != nil {
		return fmt.Errorf("uploading manifest: %w", err)
	}
	return nil
}

// GetSnapshot downloads a snapshot payload to w.
func (v *S3Vault) GetSnapshot(hostID, id string, w io.Writer) error {
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(hostID, id+payloadSuffix)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("snapshot %s for host %s: %w", id, hostID, snapshot.ErrNotFound)
		}
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// ListSnapshots pages through the host prefix and reads every manifest.
func (v *S3Vault) ListSnapshots(hostID string) ([]snapshot.Manifest, error) {
	ctx := context.Background()
	p := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.bucket),
		Prefix: aws.String(v.hostPrefix(hostID)),
	})

	var out []snapshot.Manifest
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, manifestSuffix) {
				continue
			}
			m, err := v.readManifest(ctx, key)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
	}
	sortManifests(out)
	return out, nil
}

func (v *S3Vault) readManifest(ctx context.Context, key string) (snapshot.Manifest, error) {
	obj, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("downloading manifest %s: %w", key, err)
	}
	defer obj.Body.Close()

	m, err := snapshot.DecodeManifest(obj.Body)
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("%s: %w", key, err)
	}
	return m, nil
}

// DeleteSnapshot removes the manifest first, then the payload.
func (v *S3Vault) DeleteSnapshot(hostID, id string) error {
	return v.deleteKeys(context.Background(),
		v.key(hostID, id+manifestSuffix),
		v.key(hostID, id+payloadSuffix))
}

func (v *S3Vault) deleteKeys(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(v.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup() error {
	if _, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Vault implements snapshot.Vault interface
var _ snapshot.Vault = (*S3Vault)(nil)
