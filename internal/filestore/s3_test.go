package filestore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	failPut error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestUploadAndDelete(t *testing.T) {
	fake := newFakeS3()
	st := newS3Store(fake, S3Config{Bucket: "icons", Region: "eu-central-1", PublicURL: "https://cdn.example.com/", MaxBytes: 16})
	ctx := context.Background()

	obj, err := st.Upload(ctx, File{Name: "logo.png", ContentType: "image/png", Body: strings.NewReader("png-bytes")})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(obj.ID, "icons/"))
	require.True(t, strings.HasSuffix(obj.ID, ".png"))
	require.Equal(t, "https://cdn.example.com/"+obj.ID, obj.URL)
	require.Equal(t, []byte("png-bytes"), fake.objects[obj.ID])
	require.Equal(t, "image/png", fake.types[obj.ID])

	require.NoError(t, st.Delete(ctx, obj.ID))
	require.NotContains(t, fake.objects, obj.ID)
}

func TestUploadDefaultURL(t *testing.T) {
	st := newS3Store(newFakeS3(), S3Config{Bucket: "b", Region: "us-east-1"})

	obj, err := st.Upload(context.Background(), File{ContentType: "image/svg+xml", Body: strings.NewReader("<svg/>")})
	require.NoError(t, err)
	require.Equal(t, "https://b.s3.us-east-1.amazonaws.com/"+obj.ID, obj.URL)
}

func TestUploadRejectsOversizedAndUnknownTypes(t *testing.T) {
	fake := newFakeS3()
	st := newS3Store(fake, S3Config{Bucket: "b", Region: "r", MaxBytes: 4})
	ctx := context.Background()

	_, err := st.Upload(ctx, File{ContentType: "image/png", Body: strings.NewReader("12345")})
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = st.Upload(ctx, File{ContentType: "application/pdf", Body: strings.NewReader("1")})
	require.ErrorIs(t, err, ErrUnsupportedType)

	require.Empty(t, fake.objects)
}

func TestUploadPropagatesBackendError(t *testing.T) {
	fake := newFakeS3()
	fake.failPut = errors.New("bucket gone")
	st := newS3Store(fake, S3Config{Bucket: "b", Region: "r"})

	_, err := st.Upload(context.Background(), File{ContentType: "image/png", Body: strings.NewReader("x")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bucket gone")
}

func TestDisabled(t *testing.T) {
	var st Store = Disabled{}

	_, err := st.Upload(context.Background(), File{ContentType: "image/png"})
	require.ErrorIs(t, err, ErrDisabled)
	require.NoError(t, st.Delete(context.Background(), "icons/x.png"))
}
