package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lychee-technology/openvocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in a map keyed by bucket/key.
type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestValidateSnapshotConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     openvocab.SnapshotConfig
		wantErr bool
	}{
		{name: "valid", cfg: openvocab.SnapshotConfig{Bucket: "b", Prefix: "openvocab/"}},
		{name: "no prefix", cfg: openvocab.SnapshotConfig{Bucket: "b"}},
		{name: "missing bucket", cfg: openvocab.SnapshotConfig{Prefix: "p/"}, wantErr: true},
		{name: "absolute prefix", cfg: openvocab.SnapshotConfig{Bucket: "b", Prefix: "/p/"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSnapshotConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSnapshotKey(t *testing.T) {
	e, err := NewS3SnapshotExporter(newFakeS3(), openvocab.SnapshotConfig{Bucket: "b", Prefix: "openvocab/"})
	require.NoError(t, err)
	assert.Equal(t, "openvocab/prod.json", e.Key("prod"))
	assert.Equal(t, "openvocab/prod.json", e.Key("prod.json"))
	assert.Equal(t, "openvocab/prod.json", e.Key("openvocab/prod.json"))
}

func TestSnapshotExportImport(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	e, err := NewS3SnapshotExporter(client, openvocab.SnapshotConfig{Bucket: "config", Prefix: "openvocab/"})
	require.NoError(t, err)
	e.nowFunc = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	src := NewMemoryConfigStore()
	require.NoError(t, src.SaveVocabulary(ctx, &openvocab.Vocabulary{ID: "topics", Handler: "default:taxonomy_term"}))
	require.NoError(t, src.SaveAssociation(ctx, &openvocab.Association{ID: "topics.b", Name: "b", Vocabulary: "topics", Cardinality: 1, Weight: 7}))
	require.NoError(t, src.SaveAssociation(ctx, &openvocab.Association{ID: "topics.a", Name: "a", Vocabulary: "topics", Cardinality: 1, Weight: 3}))

	key, err := e.Export(ctx, src, "")
	require.NoError(t, err)
	assert.Regexp(t, `^openvocab/20260301T120000Z-[0-9a-f]{8}\.json$`, key)

	dst := NewMemoryConfigStore()
	snap, err := e.Import(ctx, dst, key)
	require.NoError(t, err)
	assert.Equal(t, "topics.a", snap.Associations[0].ID, "exported in weight order")

	got, err := dst.LoadAssociation(ctx, "topics.b")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Weight, "weights survive the round trip")
	_, err = dst.LoadVocabulary(ctx, "topics")
	require.NoError(t, err)
}

func TestSnapshotImportRejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	client.objects["config/openvocab/bad.json"] = []byte(`{"vocabularies":[{"id":"topics"}]}`)
	e, err := NewS3SnapshotExporter(client, openvocab.SnapshotConfig{Bucket: "config", Prefix: "openvocab/"})
	require.NoError(t, err)

	dst := NewMemoryConfigStore()
	_, err = e.Import(ctx, dst, "bad")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeValidationFailed))
	list, _ := dst.ListVocabularies(ctx)
	assert.Empty(t, list)

	_, err = e.Import(ctx, dst, "missing")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeSnapshotFailed))
}

func TestSnapshotExportUploadError(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("access denied")
	e, err := NewS3SnapshotExporter(client, openvocab.SnapshotConfig{Bucket: "config"})
	require.NoError(t, err)

	_, err = e.Export(context.Background(), NewMemoryConfigStore(), "x")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeSnapshotFailed))
}
