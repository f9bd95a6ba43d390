// Package storage provides write-once blob storage backed by Azure Blob Storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/einstalek/invoice-ai/pkg/lifecycle"
)

// Info describes a stored blob.
type Info struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

// System manages blob storage operations and lifecycle coordination.
type System interface {
	// Start registers a startup hook that ensures the container exists.
	Start(lc *lifecycle.Coordinator) error
	// PutNew writes data at key only if nothing is stored there yet.
	// Returns ErrExists when the key is taken.
	PutNew(ctx context.Context, key string, data []byte, contentType string) (Info, error)
	// Get returns the blob content at key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, Info, error)
	// Stat returns blob metadata without its content. Returns ErrNotFound if absent.
	Stat(ctx context.Context, key string) (Info, error)
}

type azure struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

// New creates a storage system from the given configuration.
// No network call is made until Start or the first operation.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &azure{
		client:    client,
		container: cfg.ContainerName,
		logger:    logger.With("system", "storage"),
	}, nil
}

func newClient(cfg *Config) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return azblob.NewClient(cfg.ServiceURL, cred, nil)
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	a.logger.Info("starting storage system", "container", a.container)

	lc.OnStartup("storage", func() error {
		_, err := a.client.CreateContainer(lc.Context(), a.container, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("create container %s: %w", a.container, err)
		}
		a.logger.Info("storage container ready", "container", a.container)
		return nil
	})

	return nil
}

func (a *azure) PutNew(ctx context.Context, key string, data []byte, contentType string) (Info, error) {
	if err := validateKey(key); err != nil {
		return Info{}, err
	}

	anyTag := azcore.ETagAny
	opts := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: &anyTag},
		},
	}

	resp, err := a.client.UploadBuffer(ctx, a.container, key, data, opts)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
			return Info{}, ErrExists
		}
		return Info{}, fmt.Errorf("upload blob %s: %w", key, err)
	}

	info := Info{Key: key, Size: int64(len(data))}
	if resp.ETag != nil {
		info.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		info.LastModified = resp.LastModified.UTC()
	}
	return info, nil
}

func (a *azure) Get(ctx context.Context, key string) ([]byte, Info, error) {
	if err := validateKey(key); err != nil {
		return nil, Info{}, err
	}

	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, Info{}, ErrNotFound
		}
		return nil, Info{}, fmt.Errorf("download blob %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Info{}, fmt.Errorf("read blob %s: %w", key, err)
	}

	info := Info{Key: key, Size: int64(len(data))}
	if resp.ETag != nil {
		info.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		info.LastModified = resp.LastModified.UTC()
	}
	return data, info, nil
}

func (a *azure) Stat(ctx context.Context, key string) (Info, error) {
	if err := validateKey(key); err != nil {
		return Info{}, err
	}

	props, err := a.client.
		ServiceClient().
		NewContainerClient(a.container).
		NewBlobClient(key).
		GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return Info{}, ErrNotFound
		}
		return Info{}, fmt.Errorf("stat blob %s: %w", key, err)
	}

	info := Info{Key: key}
	if props.ETag != nil {
		info.ETag = string(*props.ETag)
	}
	if props.ContentLength != nil {
		info.Size = *props.ContentLength
	}
	if props.LastModified != nil {
		info.LastModified = props.LastModified.UTC()
	}
	return info, nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
