package objectstore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/assessment-reports/internal/config"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme_corp"},
		{"Acme, Inc.", "acme__inc_"},
		{"Müller-GmbH_2", "müller-gmbh_2"},
		{"a/b\\c", "a_b_c"},
		{"", DefaultFolderName},
		{"   ", DefaultFolderName},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeName(tt.in))
		})
	}
}

func TestKey(t *testing.T) {
	at := time.Date(2025, 2, 1, 13, 4, 5, 0, time.UTC)

	assert.Equal(t, "reports/acme_corp/job-1/executive_report_20250201_130405.pdf", Key("reports/", "Acme Corp", "job-1", "executive", at))
	assert.Equal(t, "reports/acme_corp/job-1/technical_report_20250201_130405.pdf", Key("reports", "Acme Corp", "job-1", "technical", at))
	assert.Equal(t, "customer/job-1/compliance_report_20250201_130405.pdf", Key("", "", "job-1", "compliance", at))
	assert.Equal(t, "reports/acme_corp/job-1/", Folder("/reports/", "Acme Corp", "job-1"))
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

type fakePresigner struct {
	input   *s3.GetObjectInput
	expires time.Duration
	calls   int
}

func (f *fakePresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.calls++
	f.input = params
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://bucket.s3.amazonaws.com/" + aws.ToString(params.Key) + "?X-Amz-Expires=" + opts.Expires.String() + "&n=" + string(rune('0'+f.calls)),
		Method: "GET",
	}, nil
}

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestS3Store_Upload(t *testing.T) {
	tests := []struct {
		name    string
		enc     config.EncryptionConfig
		wantSSE types.ServerSideEncryption
		wantKMS string
	}{
		{"aes256", config.EncryptionConfig{Mode: config.EncryptionAES256}, types.ServerSideEncryptionAes256, ""},
		{"kms with key", config.EncryptionConfig{Mode: config.EncryptionKMS, KMSKeyID: "alias/reports"}, types.ServerSideEncryptionAwsKms, "alias/reports"},
		{"unset mode defaults to aes256", config.EncryptionConfig{}, types.ServerSideEncryptionAes256, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			putter := &fakePutter{}
			store := NewS3StoreWithAPI(putter, &fakePresigner{}, config.StorageConfig{Bucket: "reports-bucket", Encryption: tt.enc}, nil)

			obj, err := store.Upload(context.Background(), "reports/acme/j/executive_report_x.pdf", writeArtifact(t, "%PDF-1.3"))
			require.NoError(t, err)

			assert.Equal(t, Object{Bucket: "reports-bucket", Key: "reports/acme/j/executive_report_x.pdf"}, obj)
			assert.Equal(t, tt.wantSSE, putter.input.ServerSideEncryption)
			assert.Equal(t, tt.wantKMS, aws.ToString(putter.input.SSEKMSKeyId))
			assert.Equal(t, "application/pdf", aws.ToString(putter.input.ContentType))
			assert.Equal(t, "%PDF-1.3", string(putter.body))
		})
	}
}

func TestS3Store_UploadErrors(t *testing.T) {
	store := NewS3StoreWithAPI(&fakePutter{err: errors.New("AccessDenied")}, &fakePresigner{}, config.StorageConfig{Bucket: "b"}, nil)

	_, err := store.Upload(context.Background(), "k", writeArtifact(t, "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload s3://b/k")

	_, err = store.Upload(context.Background(), "k", filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open artifact")
}

func TestS3Store_PresignGet(t *testing.T) {
	presigner := &fakePresigner{}
	store := NewS3StoreWithAPI(&fakePutter{}, presigner, config.StorageConfig{Bucket: "b"}, nil)
	obj := Object{Bucket: "b", Key: "reports/acme/j/executive.pdf"}

	first, err := store.PresignGet(context.Background(), obj, time.Hour)
	require.NoError(t, err)
	second, err := store.PresignGet(context.Background(), obj, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, time.Hour, presigner.expires)
	assert.Equal(t, "b", aws.ToString(presigner.input.Bucket))
	assert.NotEqual(t, first, second)
}

func TestLocalStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	store, err := NewLocalStore(root)
	require.NoError(t, err)
	assert.Equal(t, LocalBucket, store.Bucket())

	obj, err := store.Upload(context.Background(), "acme/j/executive_report.pdf", writeArtifact(t, "pdf-bytes"))
	require.NoError(t, err)
	assert.Equal(t, Object{Bucket: LocalBucket, Key: "acme/j/executive_report.pdf"}, obj)

	data, err := os.ReadFile(store.Path(obj.Key))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))

	link, err := store.PresignGet(context.Background(), obj, time.Minute)
	require.NoError(t, err)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "file", parsed.Scheme)
	assert.Equal(t, filepath.ToSlash(store.Path(obj.Key)), parsed.Path)
}
