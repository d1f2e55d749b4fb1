package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
)

// s3API is the subset of the S3 client used for snapshots.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Snapshot is the serialized form of a whole configuration store.
type Snapshot struct {
	ID           uuid.UUID                `json:"id"`
	ExportedAt   time.Time                `json:"exported_at"`
	Vocabularies []*openvocab.Vocabulary  `json:"vocabularies"`
	Associations []*openvocab.Association `json:"associations"`
}

// S3SnapshotExporter copies configuration between a ConfigStore and S3 objects.
type S3SnapshotExporter struct {
	client  s3API
	bucket  string
	prefix  string
	nowFunc func() time.Time
}

// ValidateSnapshotConfig checks the settings required to reach the bucket.
func ValidateSnapshotConfig(cfg openvocab.SnapshotConfig) error {
	if cfg.Bucket == "" {
		return fmt.Errorf("snapshot: bucket is required")
	}
	if strings.HasPrefix(cfg.Prefix, "/") {
		return fmt.Errorf("snapshot: prefix must not start with '/'")
	}
	return nil
}

// NewS3SnapshotExporter creates an exporter writing under cfg.Bucket/cfg.Prefix.
func NewS3SnapshotExporter(client s3API, cfg openvocab.SnapshotConfig) (*S3SnapshotExporter, error) {
	if err := ValidateSnapshotConfig(cfg); err != nil {
		return nil, err
	}
	return &S3SnapshotExporter{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		nowFunc: time.Now,
	}, nil
}

// Key returns the object key of a snapshot name.
func (e *S3SnapshotExporter) Key(name string) string {
	if strings.HasPrefix(name, e.prefix) && strings.HasSuffix(name, ".json") {
		return name
	}
	return e.prefix + strings.TrimSuffix(name, ".json") + ".json"
}

// Export writes every vocabulary and association of store to one object and
// returns its key. An empty name is replaced by a timestamped one.
func (e *S3SnapshotExporter) Export(ctx context.Context, store openvocab.ConfigStore, name string) (string, error) {
	vocabularies, err := store.ListVocabularies(ctx)
	if err != nil {
		return "", err
	}
	associations, err := store.ListAssociations(ctx)
	if err != nil {
		return "", err
	}
	openvocab.SortAssociations(associations)

	snap := Snapshot{
		ID:           uuid.New(),
		ExportedAt:   e.nowFunc().UTC(),
		Vocabularies: vocabularies,
		Associations: associations,
	}
	if name == "" {
		name = snap.ExportedAt.Format("20060102T150405Z") + "-" + snap.ID.String()[:8]
	}
	key := e.Key(name)

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", snapshotError("failed to encode snapshot", err)
	}
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", snapshotError(fmt.Sprintf("failed to upload s3://%s/%s", e.bucket, key), err)
	}
	zap.S().Infow("exported configuration snapshot", "bucket", e.bucket, "key", key,
		"vocabularies", len(vocabularies), "associations", len(associations))
	return key, nil
}

// Import loads a snapshot into store. Vocabularies are written before the
// associations that reference them; association weights are kept as exported.
// Callers must invalidate synthesized schemas afterwards.
func (e *S3SnapshotExporter) Import(ctx context.Context, store openvocab.ConfigStore, name string) (*Snapshot, error) {
	key := e.Key(name)
	out, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, snapshotError(fmt.Sprintf("failed to download s3://%s/%s", e.bucket, key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, snapshotError("failed to read snapshot body", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, snapshotError("failed to decode snapshot", err)
	}

	for _, v := range snap.Vocabularies {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if err := store.SaveVocabulary(ctx, v); err != nil {
			return nil, err
		}
	}
	for _, a := range snap.Associations {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if err := store.SaveAssociation(ctx, a); err != nil {
			return nil, err
		}
	}
	zap.S().Infow("imported configuration snapshot", "bucket", e.bucket, "key", key, "snapshot", snap.ID,
		"vocabularies", len(snap.Vocabularies), "associations", len(snap.Associations))
	return &snap, nil
}

func snapshotError(message string, cause error) error {
	return openvocab.NewError(openvocab.ErrorTypeInternal, openvocab.ErrCodeSnapshotFailed, message).WithCause(cause)
}
