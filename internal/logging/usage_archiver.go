package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"provider_core/internal/models"
)

// ArchiverConfig configures the S3 usage-log archiver.
type ArchiverConfig struct {
	Bucket        string
	Region        string
	Prefix        string // e.g. "usage/"
	PodName       string
	FlushSize     int
	FlushInterval time.Duration
}

// UsageArchiver buffers usage logs in memory and periodically flushes them
// to S3 as JSON Lines objects. Archival is best-effort telemetry: failures
// are logged and the batch is dropped, never surfaced to callers.
type UsageArchiver struct {
	client *s3.Client
	cfg    ArchiverConfig
	log    *logrus.Entry

	mu  sync.Mutex
	buf []*models.LLMUsageLog

	stopChan    chan struct{}
	stoppedChan chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
}

// NewUsageArchiver builds an archiver using the default AWS credential
// chain for the configured region.
func NewUsageArchiver(ctx context.Context, cfg ArchiverConfig) (*UsageArchiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.FlushSize <= 0 {
		cfg.FlushSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}

	return &UsageArchiver{
		client:      s3.NewFromConfig(awsCfg),
		cfg:         cfg,
		log:         New("usage-archiver"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}, nil
}

// Enqueue buffers one usage log for archival.
func (a *UsageArchiver) Enqueue(rec *models.LLMUsageLog) {
	a.mu.Lock()
	a.buf = append(a.buf, rec)
	full := len(a.buf) >= a.cfg.FlushSize
	a.mu.Unlock()

	if full {
		go a.flush(context.Background())
	}
}

// Start launches the periodic flush loop.
func (a *UsageArchiver) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		go a.run(ctx)
	})
}

// Shutdown flushes remaining records and stops the loop.
func (a *UsageArchiver) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		<-a.stoppedChan
	})
	a.flush(ctx)
	return nil
}

func (a *UsageArchiver) run(ctx context.Context) {
	defer close(a.stoppedChan)

	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.flush(ctx)
		}
	}
}

func (a *UsageArchiver) flush(ctx context.Context) {
	a.mu.Lock()
	batch := a.buf
	a.buf = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	key, err := a.writeBatch(ctx, batch)
	if err != nil {
		a.log.WithError(err).WithField("count", len(batch)).Error("failed to archive usage batch")
		return
	}
	a.log.WithFields(logrus.Fields{"key": key, "count": len(batch)}).Info("archived usage batch")
}

// writeBatch uploads a batch as one JSON Lines object and returns its key.
func (a *UsageArchiver) writeBatch(ctx context.Context, records []*models.LLMUsageLog) (string, error) {
	key := a.objectKey(time.Now())

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			a.log.WithError(err).Error("failed to encode usage record")
			continue
		}
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload usage batch to S3: %w", err)
	}

	return key, nil
}

// objectKey partitions objects by day so downstream jobs can scan windows.
// Format: usage/2026/08/23/providerd-0-20260823-143022-123456789.jsonl
func (a *UsageArchiver) objectKey(now time.Time) string {
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		a.cfg.Prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		a.cfg.PodName,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)
}
