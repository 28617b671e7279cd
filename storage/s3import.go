package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basit/pitchvault-backend/models"
)

// ObjectSource lists and fetches bundle objects from a remote bucket.
type ObjectSource interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Fetch(ctx context.Context, key string, w io.WriterAt) error
}

// S3Source reads objects from one S3 bucket.
type S3Source struct {
	client     *s3.Client
	downloader *manager.Downloader
	bucket     string
}

func NewS3Source(client *s3.Client, bucket string) *S3Source {
	return &S3Source{
		client:     client,
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
	}
}

func (s *S3Source) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *S3Source) Fetch(ctx context.Context, key string, w io.WriterAt) error {
	_, err := s.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

// ImportResult reports what an import wrote and what it refused.
type ImportResult struct {
	Imported  []string        `json:"imported"`
	Skipped   []string        `json:"skipped"`
	FileType  models.FileType `json:"fileType"`
	EntryFile string          `json:"entryFile"`
}

// Importer copies a pitch bundle stored under pitches/<id>/ in a bucket into
// the pitch root.
type Importer struct {
	source   ObjectSource
	resolver *Resolver
	logger   *zap.Logger
}

func NewImporter(source ObjectSource, resolver *Resolver, logger *zap.Logger) *Importer {
	return &Importer{
		source:   source,
		resolver: resolver,
		logger:   logger.With(zap.String("component", "s3_importer")),
	}
}

// Import downloads every object of the pitch. Keys that would land outside
// the pitch root are skipped before anything is fetched.
func (i *Importer) Import(ctx context.Context, pitchID uuid.UUID) (*ImportResult, error) {
	prefix := "pitches/" + pitchID.String() + "/"
	keys, err := i.source.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Imported: []string{}, Skipped: []string{}}
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			continue
		}
		rel := strings.TrimPrefix(key, prefix)
		if _, err := Clean(rel); err != nil {
			i.logger.Warn("skipping object outside pitch root",
				zap.String("pitch_id", pitchID.String()),
				zap.String("key", key),
			)
			res.Skipped = append(res.Skipped, key)
			continue
		}

		buf := manager.NewWriteAtBuffer(nil)
		if err := i.source.Fetch(ctx, key, buf); err != nil {
			return nil, err
		}
		if _, err := i.resolver.SaveFile(pitchID, rel, bytes.NewReader(buf.Bytes())); err != nil {
			if errors.Is(err, ErrInvalidPath) {
				i.logger.Warn("skipping object outside pitch root",
					zap.String("pitch_id", pitchID.String()),
					zap.String("key", key),
				)
				res.Skipped = append(res.Skipped, key)
				continue
			}
			return nil, err
		}
		res.Imported = append(res.Imported, rel)
	}

	files, err := i.resolver.ListFiles(pitchID)
	if err != nil {
		return nil, err
	}
	res.FileType, res.EntryFile = DetectFileType(files)

	i.logger.Info("bundle imported",
		zap.String("pitch_id", pitchID.String()),
		zap.Int("imported", len(res.Imported)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}
