// Package drive adapts Google Drive v3 to the FileStore port. Shared
// and team drives are always included; trashed files never are.
package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mexwill790-beep/wan/internal/domain/entity"
)

const listFields = "nextPageToken, files(id, name, mimeType, createdTime, modifiedTime, size)"

type Storage struct {
	files *gdrive.FilesService
}

type StorageConfig struct {
	// CredentialsJSON is a service-account key, passed inline.
	CredentialsJSON string
	// Endpoint overrides the API base URL and disables authentication.
	// Used by tests.
	Endpoint string
}

func NewStorage(ctx context.Context, cfg StorageConfig) (*Storage, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else {
		opts = append(opts,
			option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
			option.WithScopes(gdrive.DriveScope),
		)
	}

	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Storage{files: svc.Files}, nil
}

// List walks every result page of the folder query and returns the
// union, so callers never see pagination.
func (s *Storage) List(ctx context.Context, folderID, mimePrefix string) ([]entity.RemoteFile, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	if mimePrefix != "" {
		q += fmt.Sprintf(" and mimeType contains '%s'", mimePrefix)
	}

	var out []entity.RemoteFile
	pageToken := ""
	for {
		call := s.files.List().
			Q(q).
			Fields(googleapi.Field(listFields)).
			PageSize(1000).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list folder %s: %w", folderID, err)
		}
		for _, f := range resp.Files {
			out = append(out, toRemoteFile(f))
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return out, nil
		}
	}
}

func (s *Storage) Download(ctx context.Context, fileID, destPath string) error {
	resp, err := s.files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	_, err = io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

func (s *Storage) Upload(ctx context.Context, localPath, folderID, name string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	meta := &gdrive.File{Name: name, Parents: []string{folderID}}
	created, err := s.files.Create(meta).
		Media(f).
		Fields("id, name").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return created.Id, nil
}

func (s *Storage) Rename(ctx context.Context, fileID, newName string) error {
	_, err := s.files.Update(fileID, &gdrive.File{Name: newName}).
		Fields("id, name").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("rename %s: %w", fileID, err)
	}
	return nil
}

func toRemoteFile(f *gdrive.File) entity.RemoteFile {
	return entity.RemoteFile{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Size:         f.Size,
		CreatedTime:  parseTime(f.CreatedTime),
		ModifiedTime: parseTime(f.ModifiedTime),
	}
}

// parseTime tolerates absent or malformed timestamps; the zero value
// makes SortTime fall through to the other field.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
