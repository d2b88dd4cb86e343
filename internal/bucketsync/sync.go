// Package bucketsync copies storage buckets and their objects between two
// S3-compatible endpoints.
package bucketsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pgporter/pgporter/internal/progress"
)

// Endpoint identifies one S3-compatible side of a sync.
type Endpoint struct {
	URL       string // host:port, no scheme
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Options configure a sync run.
type Options struct {
	Source   Endpoint
	Target   Endpoint
	Buckets  []string // include list; empty means every source bucket
	DryRun   bool
	Progress progress.Reporter
}

// Stats summarizes a sync run. Objects already present on the target with
// matching size and ETag are counted as skipped, not copied.
type Stats struct {
	Buckets  int           `json:"buckets"`
	Copied   int           `json:"objects_copied"`
	Skipped  int           `json:"objects_skipped"`
	Bytes    int64         `json:"bytes"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"-"`
}

// Syncer copies buckets from source to target.
type Syncer struct {
	source   *minio.Client
	target   *minio.Client
	opts     Options
	stats    Stats
	progress progress.Reporter
}

// New builds clients for both endpoints. Keys that look like platform JWTs
// are inspected up front so misconfigured roles surface as warnings before
// the first request, not as opaque 403s mid-run.
func New(opts Options) (*Syncer, error) {
	source, err := newClient(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("source endpoint: %w", err)
	}
	target, err := newClient(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("target endpoint: %w", err)
	}

	rep := opts.Progress
	if rep == nil {
		rep = progress.NopReporter{}
	}
	s := &Syncer{source: source, target: target, opts: opts, progress: rep}

	for _, w := range InspectServiceKey("source", opts.Source.SecretKey) {
		s.warn("%s", w)
	}
	for _, w := range InspectServiceKey("target", opts.Target.SecretKey) {
		s.warn("%s", w)
	}
	return s, nil
}

func newClient(ep Endpoint) (*minio.Client, error) {
	if ep.URL == "" {
		return nil, errors.New("endpoint URL is required")
	}
	return minio.New(ep.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(ep.AccessKey, ep.SecretKey, ""),
		Secure: ep.UseSSL,
	})
}

func (s *Syncer) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.stats.Warnings = append(s.stats.Warnings, msg)
	s.progress.Warn(msg)
}

// Run syncs every selected bucket. Per-object failures are warnings; only a
// failure to list the source buckets aborts the run.
func (s *Syncer) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()

	buckets, err := s.source.ListBuckets(ctx)
	if err != nil {
		return &s.stats, fmt.Errorf("listing source buckets: %w", err)
	}
	selected := filterBuckets(buckets, s.opts.Buckets)

	phase := progress.Phase{Name: "Buckets", Index: 1, Total: 1}
	s.progress.StartPhase(phase, len(selected))

	for i, bucket := range selected {
		if err := s.syncBucket(ctx, bucket); err != nil {
			s.warn("bucket %s: %v", bucket, err)
			continue
		}
		s.stats.Buckets++
		s.progress.Progress(phase, i+1, len(selected))
	}

	s.progress.CompletePhase(phase, len(selected), time.Since(start))
	s.stats.Duration = time.Since(start)
	return &s.stats, nil
}

// filterBuckets applies the include list, preserving server order.
func filterBuckets(buckets []minio.BucketInfo, include []string) []string {
	var names []string
	if len(include) == 0 {
		for _, b := range buckets {
			names = append(names, b.Name)
		}
		return names
	}
	want := make(map[string]bool, len(include))
	for _, b := range include {
		want[b] = true
	}
	for _, b := range buckets {
		if want[b.Name] {
			names = append(names, b.Name)
		}
	}
	return names
}

func (s *Syncer) syncBucket(ctx context.Context, bucket string) error {
	exists, err := s.target.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("checking target bucket: %w", err)
	}
	if !exists {
		if s.opts.DryRun {
			s.warn("dry-run: would create bucket %s", bucket)
		} else if err := s.target.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			// A concurrent creation or an already-owned bucket is fine.
			if already, ok := err.(minio.ErrorResponse); !ok ||
				(already.Code != "BucketAlreadyOwnedByYou" && already.Code != "BucketAlreadyExists") {
				return fmt.Errorf("creating target bucket: %w", err)
			}
		}
	}

	for obj := range s.source.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			s.warn("listing %s: %v", bucket, obj.Err)
			continue
		}
		if err := s.syncObject(ctx, bucket, obj); err != nil {
			s.warn("object %s/%s: %v", bucket, obj.Key, err)
		}
	}
	return nil
}

func (s *Syncer) syncObject(ctx context.Context, bucket string, obj minio.ObjectInfo) error {
	stat, err := s.target.StatObject(ctx, bucket, obj.Key, minio.StatObjectOptions{})
	if err == nil && stat.Size == obj.Size && stat.ETag == obj.ETag {
		s.stats.Skipped++
		return nil
	}

	if s.opts.DryRun {
		s.stats.Copied++
		s.stats.Bytes += obj.Size
		return nil
	}

	reader, err := s.source.GetObject(ctx, bucket, obj.Key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("reading source object: %w", err)
	}
	defer reader.Close()

	if _, err := s.target.PutObject(ctx, bucket, obj.Key, reader, obj.Size, minio.PutObjectOptions{
		ContentType: obj.ContentType,
	}); err != nil {
		return fmt.Errorf("writing target object: %w", err)
	}

	s.stats.Copied++
	s.stats.Bytes += obj.Size
	return nil
}
