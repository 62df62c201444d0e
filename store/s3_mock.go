package store

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockObject is a stored object plus its ETag, tracked for tests.
type mockObject struct {
	content  string
	etag     string
	metadata map[string]string
}

// mockS3Client is a fake S3Client used by this package's tests to
// exercise S3Store without a network call.
type mockS3Client struct {
	objects map[string]*mockObject
	rev     int
	Err     error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string]*mockObject)}
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	obj, ok := m.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(strings.NewReader(obj.content)),
		ETag:     aws.String(obj.etag),
		Metadata: obj.metadata,
	}, nil
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	key := aws.ToString(params.Key)
	existing, exists := m.objects[key]

	if aws.ToString(params.IfNoneMatch) == "*" && exists {
		return nil, &preconditionError{}
	}
	if im := aws.ToString(params.IfMatch); im != "" {
		if !exists || existing.etag != im {
			return nil, &preconditionError{}
		}
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.rev++
	obj := &mockObject{content: string(data), etag: strconv.Itoa(m.rev), metadata: params.Metadata}
	m.objects[key] = obj

	return &s3.PutObjectOutput{ETag: aws.String(obj.etag)}, nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	delete(m.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	prefix := aws.ToString(params.Prefix)
	var contents []types.Object
	for key := range m.objects {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{Key: aws.String(key)})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	obj, ok := m.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.HeadObjectOutput{ETag: aws.String(obj.etag)}, nil
}

type preconditionError struct{}

func (e *preconditionError) Error() string     { return "PreconditionFailed" }
func (e *preconditionError) ErrorCode() string { return "PreconditionFailed" }
