package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mexwill790-beep/wan/internal/domain/entity"
	"github.com/mexwill790-beep/wan/internal/worksource"
)

type storeOp struct {
	kind string // "download", "upload", "rename"
	id   string
	name string
}

type fakeStore struct {
	files     map[string][]entity.RemoteFile
	ops       []storeOp
	uploadErr error
}

func (f *fakeStore) List(_ context.Context, folderID, mimePrefix string) ([]entity.RemoteFile, error) {
	var out []entity.RemoteFile
	for _, file := range f.files[folderID] {
		if mimePrefix == "" || strings.HasPrefix(file.MimeType, mimePrefix) {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeStore) Download(_ context.Context, fileID, destPath string) error {
	f.ops = append(f.ops, storeOp{kind: "download", id: fileID})
	return os.WriteFile(destPath, []byte("content-of-"+fileID), 0o644)
}

func (f *fakeStore) Upload(_ context.Context, localPath, folderID, name string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.ops = append(f.ops, storeOp{kind: "upload", id: folderID, name: name})
	return "uploaded-" + name, nil
}

func (f *fakeStore) Rename(_ context.Context, fileID, newName string) error {
	f.ops = append(f.ops, storeOp{kind: "rename", id: fileID, name: newName})
	return nil
}

func (f *fakeStore) opsOf(kind string) []storeOp {
	var out []storeOp
	for _, op := range f.ops {
		if op.kind == kind {
			out = append(out, op)
		}
	}
	return out
}

type genCall struct {
	imagePath string
	videoPath string
}

type fakeGenerator struct {
	resolves int
	calls    []genCall
	err      error
}

func (g *fakeGenerator) ResolveEndpoint(context.Context) (string, error) {
	g.resolves++
	return "/animate", nil
}

func (g *fakeGenerator) Generate(_ context.Context, _, imagePath, videoPath, outDir string) (string, error) {
	g.calls = append(g.calls, genCall{imagePath: imagePath, videoPath: videoPath})
	if g.err != nil {
		return "", g.err
	}
	artifact := filepath.Join(outDir, fmt.Sprintf("result_%d.mp4", len(g.calls)))
	if err := os.WriteFile(artifact, []byte("artifact"), 0o644); err != nil {
		return "", err
	}
	return artifact, nil
}

type fakeNotifier struct {
	to    string
	runID string
	count int
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, to, runID, _ string) error {
	n.to, n.runID = to, runID
	n.count++
	return nil
}

func ts(day int) time.Time {
	return time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC)
}

func newUseCase(store *fakeStore, gen *fakeGenerator, notifier *fakeNotifier, maxBytes int64, to string) *AnimateRunUseCase {
	return NewAnimateRunUseCase(store, gen, worksource.New(store), notifier, zap.NewNop(), AnimateRunConfig{
		PicFolderID:    "pics",
		RefFolderID:    "refs",
		OutFolderID:    "out",
		MaxVideoBytes:  maxBytes,
		NotificationTo: to,
	})
}

func baseFiles() map[string][]entity.RemoteFile {
	return map[string][]entity.RemoteFile{
		"pics": {
			{ID: "i1", Name: "old.png", MimeType: "image/png", ModifiedTime: ts(1)},
			{ID: "i2", Name: "new.png", MimeType: "image/png", ModifiedTime: ts(5)},
		},
		"refs": {
			{ID: "v2", Name: "dance2.mp4", MimeType: "video/mp4", ModifiedTime: ts(3), Size: 1 << 20},
			{ID: "v1", Name: "dance1.mp4", MimeType: "video/mp4", ModifiedTime: ts(2), Size: 1 << 20},
			{ID: "v3", Name: "done__PROCESSED.mp4", MimeType: "video/mp4", ModifiedTime: ts(1), Size: 1 << 20},
		},
	}
}

func TestRunProcessesQueueInOrder(t *testing.T) {
	store := &fakeStore{files: baseFiles()}
	gen := &fakeGenerator{}
	uc := newUseCase(store, gen, nil, 0, "")

	require.NoError(t, uc.Execute(context.Background()))

	// Oldest first, processed marker excluded.
	require.Len(t, gen.calls, 2)
	assert.Contains(t, gen.calls[0].videoPath, "dance1.mp4")
	assert.Contains(t, gen.calls[1].videoPath, "dance2.mp4")

	// The newest image is the reference, downloaded exactly once and
	// shared by both items.
	assert.Contains(t, gen.calls[0].imagePath, "new.png")
	assert.Equal(t, gen.calls[0].imagePath, gen.calls[1].imagePath)

	downloads := store.opsOf("download")
	require.Len(t, downloads, 3) // reference + two videos
	assert.Equal(t, "i2", downloads[0].id)

	uploads := store.opsOf("upload")
	require.Len(t, uploads, 2)
	assert.Equal(t, "dance1__MIX__PRO.mp4", uploads[0].name)
	assert.Equal(t, "dance2__MIX__PRO.mp4", uploads[1].name)
	assert.Equal(t, "out", uploads[0].id)

	renames := store.opsOf("rename")
	require.Len(t, renames, 2)
	assert.Equal(t, storeOp{kind: "rename", id: "v1", name: "dance1__PROCESSED.mp4"}, renames[0])
	assert.Equal(t, storeOp{kind: "rename", id: "v2", name: "dance2__PROCESSED.mp4"}, renames[1])

	// Each rename strictly follows its upload.
	var kinds []string
	for _, op := range store.ops {
		kinds = append(kinds, op.kind)
	}
	assert.Equal(t, []string{"download", "download", "upload", "rename", "download", "upload", "rename"}, kinds)
}

func TestRunEmptyQueueIsNoOp(t *testing.T) {
	files := baseFiles()
	files["refs"] = nil
	store := &fakeStore{files: files}
	gen := &fakeGenerator{}
	uc := newUseCase(store, gen, nil, 0, "")

	require.NoError(t, uc.Execute(context.Background()))

	assert.Zero(t, gen.resolves)
	assert.Empty(t, gen.calls)
	assert.Empty(t, store.ops)
}

func TestRunSkipsOversizedVideo(t *testing.T) {
	files := baseFiles()
	files["refs"] = []entity.RemoteFile{
		{ID: "v4", Name: "huge.mp4", MimeType: "video/mp4", ModifiedTime: ts(2), Size: 300 << 20},
		{ID: "v5", Name: "small.mp4", MimeType: "video/mp4", ModifiedTime: ts(3), Size: 10 << 20},
	}
	store := &fakeStore{files: files}
	gen := &fakeGenerator{}
	uc := newUseCase(store, gen, nil, 200<<20, "")

	require.NoError(t, uc.Execute(context.Background()))

	// huge.mp4 is never downloaded, generated or renamed.
	require.Len(t, gen.calls, 1)
	assert.Contains(t, gen.calls[0].videoPath, "small.mp4")
	for _, op := range store.opsOf("download") {
		assert.NotEqual(t, "v4", op.id)
	}
	uploads := store.opsOf("upload")
	require.Len(t, uploads, 1)
	assert.Equal(t, "small__MIX__PRO.mp4", uploads[0].name)
	require.Len(t, store.opsOf("rename"), 1)
}

func TestRunUnknownSizePassesGate(t *testing.T) {
	files := baseFiles()
	files["refs"] = []entity.RemoteFile{
		{ID: "v1", Name: "nosize.mp4", MimeType: "video/mp4", ModifiedTime: ts(2)},
	}
	store := &fakeStore{files: files}
	gen := &fakeGenerator{}
	uc := newUseCase(store, gen, nil, 200<<20, "")

	require.NoError(t, uc.Execute(context.Background()))
	assert.Len(t, gen.calls, 1)
}

func TestRunNoReferenceImageIsFatal(t *testing.T) {
	files := baseFiles()
	files["pics"] = []entity.RemoteFile{
		{ID: "i1", Name: ".hidden.png", MimeType: "image/png", ModifiedTime: ts(1)},
	}
	store := &fakeStore{files: files}
	gen := &fakeGenerator{}
	uc := newUseCase(store, gen, nil, 0, "")

	err := uc.Execute(context.Background())
	assert.ErrorIs(t, err, entity.ErrNoReferenceImage)
	assert.Empty(t, gen.calls)
	assert.Empty(t, store.ops)
}

func TestRunAbortsQueueOnGenerationFailure(t *testing.T) {
	store := &fakeStore{files: baseFiles()}
	gen := &fakeGenerator{err: errors.New("space unavailable")}
	notifier := &fakeNotifier{}
	uc := newUseCase(store, gen, notifier, 0, "ops@example.com")

	err := uc.Execute(context.Background())
	require.Error(t, err)

	// Only the first item was attempted; nothing was uploaded or
	// marked processed.
	assert.Len(t, gen.calls, 1)
	assert.Empty(t, store.opsOf("upload"))
	assert.Empty(t, store.opsOf("rename"))

	assert.Equal(t, 1, notifier.count)
	assert.Equal(t, "ops@example.com", notifier.to)
	assert.NotEmpty(t, notifier.runID)
}

func TestRunUploadFailureLeavesSourceUnmarked(t *testing.T) {
	store := &fakeStore{files: baseFiles(), uploadErr: errors.New("quota exceeded")}
	gen := &fakeGenerator{}
	uc := newUseCase(store, gen, nil, 0, "")

	err := uc.Execute(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.opsOf("rename"))
}
