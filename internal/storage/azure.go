package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// AzureLister lists blobs from an Azure Blob Storage account.
type AzureLister struct {
	client      *azblob.Client
	pageTimeout time.Duration
}

// NewAzureLister builds an AzureLister from a storage account connection
// string, the same credential shape the Azure portal hands out. pageTimeout
// bounds each page fetch independently; zero disables it.
func NewAzureLister(connectionString string, pageTimeout time.Duration) (*AzureLister, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("azure connection string must be provided")
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}
	return &AzureLister{client: client, pageTimeout: pageTimeout}, nil
}

func (l *AzureLister) pageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.pageTimeout > 0 {
		return context.WithTimeout(ctx, l.pageTimeout)
	}
	return ctx, func() {}
}

func (l *AzureLister) Name() string { return "azure" }

// List returns one page of blobs under req.Prefix. The continuation token is
// the service-side marker from the previous page.
func (l *AzureLister) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	opts := &azblob.ListBlobsFlatOptions{}
	if req.Prefix != "" {
		opts.Prefix = &req.Prefix
	}
	if req.MaxKeys > 0 {
		max := int32(req.MaxKeys)
		opts.MaxResults = &max
	}
	if req.Token != "" {
		opts.Marker = &req.Token
	}

	pager := l.client.NewListBlobsFlatPager(req.Bucket, opts)
	if !pager.More() {
		return &ListResult{}, nil
	}

	pctx, cancel := l.pageContext(ctx)
	resp, err := pager.NextPage(pctx)
	cancel()
	if err != nil {
		return nil, wrapAzureError(req.Bucket, err)
	}

	out := &ListResult{Objects: make([]ObjectRef, 0, len(resp.Segment.BlobItems))}
	for _, item := range resp.Segment.BlobItems {
		out.Objects = append(out.Objects, blobToRef(req.Bucket, item))
	}
	if resp.NextMarker != nil && *resp.NextMarker != "" {
		out.NextToken = *resp.NextMarker
		out.Truncated = true
	}
	return out, nil
}

// ListLevel lists one directory level using the hierarchy API, draining any
// marker-based pages internally.
func (l *AzureLister) ListLevel(ctx context.Context, req ListRequest, delimiter string) (*LevelResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	containerClient := l.client.ServiceClient().NewContainerClient(req.Bucket)

	opts := &container.ListBlobsHierarchyOptions{}
	if req.Prefix != "" {
		opts.Prefix = &req.Prefix
	}
	if req.MaxKeys > 0 {
		max := int32(req.MaxKeys)
		opts.MaxResults = &max
	}

	level := &LevelResult{}
	pager := containerClient.NewListBlobsHierarchyPager(delimiter, opts)
	for pager.More() {
		pctx, cancel := l.pageContext(ctx)
		resp, err := pager.NextPage(pctx)
		cancel()
		if err != nil {
			return nil, wrapAzureError(req.Bucket, err)
		}
		for _, item := range resp.Segment.BlobItems {
			level.Objects = append(level.Objects, blobToRef(req.Bucket, item))
		}
		for _, p := range resp.Segment.BlobPrefixes {
			if p.Name != nil {
				level.Prefixes = append(level.Prefixes, *p.Name)
			}
		}
	}
	return level, nil
}

func blobToRef(bucket string, item *container.BlobItem) ObjectRef {
	ref := ObjectRef{Bucket: bucket}
	if item.Name != nil {
		ref.Key = *item.Name
	}
	if props := item.Properties; props != nil {
		if props.ContentLength != nil {
			ref.Size = *props.ContentLength
		}
		if props.LastModified != nil {
			ref.LastModified = *props.LastModified
		}
		if props.ETag != nil {
			ref.ETag = string(*props.ETag)
		}
	}
	return ref
}

func wrapAzureError(bucket string, err error) error {
	if bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.InvalidResourceName) {
		return fmt.Errorf("%w: container %q not found", ErrInvalidSpec, bucket)
	}
	return fmt.Errorf("%w: azure list failed: %v", ErrStorageUnavailable, err)
}

var (
	_ Lister          = (*AzureLister)(nil)
	_ DelimiterLister = (*AzureLister)(nil)
)
