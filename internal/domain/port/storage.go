package port

import (
	"context"

	"github.com/mexwill790-beep/wan/internal/domain/entity"
)

// FileStore is the folder-structured remote store the worker reads
// sources from and writes artifacts to. List paginates transparently
// and never returns trashed items; mimePrefix narrows the listing to
// one media family ("image/", "video/") when non-empty.
type FileStore interface {
	List(ctx context.Context, folderID, mimePrefix string) ([]entity.RemoteFile, error)
	Download(ctx context.Context, fileID, destPath string) error
	Upload(ctx context.Context, localPath, folderID, name string) (string, error)
	Rename(ctx context.Context, fileID, newName string) error
}
