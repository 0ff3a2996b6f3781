// Package archive stores finished weekly run results in S3 so run
// history survives restarts and database resets.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/crm-tag-sync/internal/pkg/logger"
	"github.com/ignite/crm-tag-sync/internal/service/monitor"
)

// S3RunArchive persists one JSON object per weekly monitor run.
type S3RunArchive struct {
	client *s3.Client
	bucket string
}

// runPayload is the JSON structure stored in S3.
type runPayload struct {
	Result     monitor.RunResult `json:"result"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// NewS3RunArchive creates an S3-backed run archive.
func NewS3RunArchive(ctx context.Context, bucket, region string) (*S3RunArchive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for run archive: %w", err)
	}
	return &S3RunArchive{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// s3Key returns the object key for a run's ISO week bucket.
func (a *S3RunArchive) s3Key(week, year int) string {
	return fmt.Sprintf("weekly-runs/%d_%02d.json", year, week)
}

// ArchiveRun writes the run result to S3. Re-running in the same week
// overwrites the object with the latest result.
func (a *S3RunArchive) ArchiveRun(ctx context.Context, result monitor.RunResult) error {
	key := a.s3Key(result.Week, result.Year)

	body, err := json.Marshal(runPayload{Result: result, ArchivedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling run payload: %w", err)
	}

	contentType := "application/json"
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", a.bucket, key, err)
	}

	logger.Info("run result archived", "bucket", a.bucket, "key", key, "bytes", len(body))
	return nil
}
