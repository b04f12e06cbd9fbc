package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ecomdw/etl/internal/domain/dataset"
	"github.com/ecomdw/etl/internal/domain/shared"
	"github.com/ecomdw/etl/internal/infrastructure/config"
	csvimport "github.com/ecomdw/etl/internal/infrastructure/import"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeObjects struct {
	objects   map[string]string
	requested []string
	headErr   error
}

func (f *fakeObjects) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)
	f.requested = append(f.requested, aws.ToString(params.Bucket)+"/"+key)
	body, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func (f *fakeObjects) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestNewS3Source_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "storage configuration is required"},
		{name: "missing bucket", cfg: &config.StorageConfig{Region: "us-east-1"}, wantErr: "storage bucket is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewS3Source(context.Background(), tt.cfg)
			assert.Nil(t, src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewS3Source_StaticCredentials(t *testing.T) {
	src, err := NewS3Source(context.Background(), &config.StorageConfig{
		Endpoint:        "http://localhost:9000",
		Region:          "sa-east-1",
		Bucket:          "olist-raw",
		Prefix:          "/2018/",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		UsePathStyle:    true,
	}, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	assert.Equal(t, "olist-raw", src.Bucket())
	assert.Equal(t, "s3://olist-raw/2018/olist_orders_dataset.csv", src.Location("olist_orders_dataset.csv"))
}

func TestS3Source_Open(t *testing.T) {
	fake := &fakeObjects{objects: map[string]string{
		"raw/olist_sellers_dataset.csv": "seller_id,seller_zip_code_prefix,seller_city,seller_state\ns1,13023,campinas,SP\n",
	}}
	src := newS3Source(fake, "olist", "raw")

	rc, err := src.Open(context.Background(), "olist_sellers_dataset.csv")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(body), "campinas")
	assert.Equal(t, []string{"olist/raw/olist_sellers_dataset.csv"}, fake.requested)
}

func TestS3Source_Open_NotFound(t *testing.T) {
	src := newS3Source(&fakeObjects{}, "olist", "")

	_, err := src.Open(context.Background(), "olist_orders_dataset.csv")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Contains(t, err.Error(), "s3://olist/olist_orders_dataset.csv")
}

func TestS3Source_Check(t *testing.T) {
	assert.NoError(t, newS3Source(&fakeObjects{}, "olist", "").Check(context.Background()))

	missing := newS3Source(&fakeObjects{headErr: &types.NotFound{}}, "olist", "")
	assert.ErrorIs(t, missing.Check(context.Background()), shared.ErrNotFound)

	denied := newS3Source(&fakeObjects{headErr: errors.New("AccessDenied")}, "olist", "")
	err := denied.Check(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
}

func TestS3Source_FeedsExtractor(t *testing.T) {
	fake := &fakeObjects{objects: map[string]string{
		"product_category_name_translation.csv": "product_category_name,product_category_name_english\nbeleza_saude,health_beauty\n",
	}}
	src := newS3Source(fake, "olist", "")

	var _ csvimport.Source = src
	ex := csvimport.NewExtractor(src, zap.NewNop())

	table, err := ex.Extract(context.Background(), dataset.CategoryTranslation)
	require.NoError(t, err)
	assert.Equal(t, "s3://olist/product_category_name_translation.csv", table.Source)
	assert.Equal(t, "health_beauty", table.Rows[0]["product_category_name_english"])

	_, err = ex.Extract(context.Background(), dataset.Orders)
	var dsErr *csvimport.DatasetError
	require.True(t, errors.As(err, &dsErr))
	assert.True(t, dsErr.IsNotFound())
}
