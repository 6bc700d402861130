package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const driveFolderMimeType = "application/vnd.google-apps.folder"

// DriveLister lists files from a Google Drive folder tree. The bucket name
// is a folder path relative to the Drive root ("datasets/sales"); file paths
// inside that folder become object keys with "/" separators.
//
// Drive has no native prefix listing, so the whole tree under the bucket
// folder is walked and filtered client-side. List therefore returns a single
// page; Drive's own page tokens are drained per folder internally.
type DriveLister struct {
	srv         *drive.Service
	pageTimeout time.Duration
}

// NewDriveLister builds a DriveLister from service-account credentials JSON.
// pageTimeout bounds each Drive API call independently; zero disables it.
func NewDriveLister(credentialsJSON string, pageTimeout time.Duration) (*DriveLister, error) {
	config, err := google.JWTConfigFromJSON(
		[]byte(credentialsJSON),
		drive.DriveReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	client := config.Client(context.Background())
	srv, err := drive.NewService(context.Background(), option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive client: %w", err)
	}

	return &DriveLister{srv: srv, pageTimeout: pageTimeout}, nil
}

func (l *DriveLister) Name() string { return "drive" }

func (l *DriveLister) pageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.pageTimeout > 0 {
		return context.WithTimeout(ctx, l.pageTimeout)
	}
	return ctx, func() {}
}

func (l *DriveLister) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	rootID, err := l.findFolderByPath(ctx, req.Bucket)
	if err != nil {
		return nil, err
	}

	var refs []ObjectRef
	if err := l.walkFolder(ctx, req, rootID, "", &refs); err != nil {
		return nil, err
	}
	return &ListResult{Objects: refs}, nil
}

// walkFolder lists one folder, recursing into subfolders so that nested
// files appear with their full relative path.
func (l *DriveLister) walkFolder(ctx context.Context, req ListRequest, folderID, dir string, out *[]ObjectRef) error {
	pageToken := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		call := l.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed=false", folderID)).
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
			PageToken(pageToken)
		if req.MaxKeys > 0 {
			call = call.PageSize(int64(req.MaxKeys))
		}

		pctx, cancel := l.pageContext(ctx)
		result, err := call.Context(pctx).Do()
		cancel()
		if err != nil {
			return fmt.Errorf("%w: drive list failed: %v", ErrStorageUnavailable, err)
		}

		for _, f := range result.Files {
			key := f.Name
			if dir != "" {
				key = dir + "/" + f.Name
			}

			if f.MimeType == driveFolderMimeType {
				if err := l.walkFolder(ctx, req, f.Id, key, out); err != nil {
					return err
				}
				continue
			}

			if req.Prefix != "" && !strings.HasPrefix(key, req.Prefix) {
				continue
			}

			ref := ObjectRef{
				Bucket: req.Bucket,
				Key:    key,
				Size:   f.Size,
			}
			if t, err := parseDriveTime(f.ModifiedTime); err == nil {
				ref.LastModified = t
			}
			*out = append(*out, ref)
		}

		if result.NextPageToken == "" {
			return nil
		}
		pageToken = result.NextPageToken
	}
}

// findFolderByPath resolves a "a/b/c" folder path to a Drive folder ID.
func (l *DriveLister) findFolderByPath(ctx context.Context, path string) (string, error) {
	currentID := "root"
	for _, folder := range strings.Split(path, "/") {
		if folder == "" {
			continue
		}

		pctx, cancel := l.pageContext(ctx)
		result, err := l.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				currentID, folder, driveFolderMimeType)).
			Fields("files(id, name)").
			Context(pctx).
			Do()
		cancel()
		if err != nil {
			return "", fmt.Errorf("%w: error finding folder %s: %v", ErrStorageUnavailable, folder, err)
		}

		if len(result.Files) == 0 {
			return "", fmt.Errorf("%w: drive folder not found: %s", ErrInvalidSpec, folder)
		}

		currentID = result.Files[0].Id
	}

	return currentID, nil
}

func parseDriveTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

var _ Lister = (*DriveLister)(nil)
