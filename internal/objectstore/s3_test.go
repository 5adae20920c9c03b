package objectstore

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	putKey      string
	putType     string
	putBody     []byte
	deletedKeys []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putKey = aws.ToString(in.Key)
	f.putType = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.putBody = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	for _, o := range in.Delete.Objects {
		f.deletedKeys = append(f.deletedKeys, aws.ToString(o.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3Store_UploadUsesPrefixedKey(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(fake, "media", "https://cdn.example.com/")

	url, err := store.Upload(context.Background(), "input-images", "input-1-a.png", []byte("png"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/input-images/input-1-a.png", url)
	assert.Equal(t, "input-images/input-1-a.png", fake.putKey)
	assert.Equal(t, "image/png", fake.putType)
	assert.Equal(t, []byte("png"), fake.putBody)
}

func TestS3Store_Remove(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(fake, "media", "https://cdn.example.com")

	require.NoError(t, store.Remove(context.Background(), "output-images", []string{"a.png", "b.png"}))
	assert.Equal(t, []string{"output-images/a.png", "output-images/b.png"}, fake.deletedKeys)

	require.NoError(t, store.Remove(context.Background(), "output-images", nil))
	assert.Len(t, fake.deletedKeys, 2)
}
