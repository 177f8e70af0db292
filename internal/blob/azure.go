package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azblobblob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.uber.org/zap"
)

// AzureStore keeps blobs in one Azure Storage (ADLS) container.
type AzureStore struct {
	client    *azblob.Client
	container string
	logger    *zap.Logger
}

func NewAzureStore(connectionString, container string, logger *zap.Logger) (*AzureStore, error) {
	if container == "" {
		return nil, errors.New("blob: container is required")
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("blob: create client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AzureStore{client: client, container: container, logger: logger.Named("blob")}, nil
}

func (s *AzureStore) Container() string { return s.container }

func (s *AzureStore) Upload(ctx context.Context, name string, data []byte) error {
	ct := http.DetectContentType(data)
	_, err := s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &azblobblob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		return fmt.Errorf("blob: upload %q: %w", name, err)
	}
	s.logger.Info("blob uploaded", zap.String("blob", name), zap.Int("bytes", len(data)))
	return nil
}

func (s *AzureStore) Download(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, s.wrap("download", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("blob: read %q: %w", name, err)
	}
	return data, nil
}

func (s *AzureStore) Properties(ctx context.Context, name string) (*Info, error) {
	props, err := s.client.ServiceClient().
		NewContainerClient(s.container).
		NewBlobClient(name).
		GetProperties(ctx, nil)
	if err != nil {
		return nil, s.wrap("properties", name, err)
	}

	info := &Info{Name: name, Container: s.container}
	if props.ContentLength != nil {
		info.Size = *props.ContentLength
	}
	if props.ContentType != nil {
		info.ContentType = *props.ContentType
	}
	if props.ETag != nil {
		info.ETag = string(*props.ETag)
	}
	if props.LastModified != nil {
		info.LastModified = *props.LastModified
	}
	return info, nil
}

func (s *AzureStore) wrap(op, name string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return fmt.Errorf("blob: %s %q: %w", op, name, err)
}
