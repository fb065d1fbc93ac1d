package entity

import (
	"regexp"
	"strings"
	"time"
)

const (
	// ProcessedTag marks a source video whose output has been uploaded.
	// Its presence in the remote name is the only processing state kept
	// anywhere.
	ProcessedTag = "__PROCESSED"

	// OutputTag names the transformation baked into every artifact:
	// mix mode at the pro quality tier.
	OutputTag = "__MIX__PRO"
)

// RemoteFile is one object in the remote store. Everything except Name
// is read-only from this worker's perspective.
type RemoteFile struct {
	ID           string
	Name         string
	MimeType     string
	Size         int64
	CreatedTime  time.Time
	ModifiedTime time.Time
}

// SortTime prefers the modification time and falls back to the creation
// time when the store never recorded a modification.
func (f RemoteFile) SortTime() time.Time {
	if !f.ModifiedTime.IsZero() {
		return f.ModifiedTime
	}
	return f.CreatedTime
}

func (f RemoteFile) IsImage() bool { return strings.HasPrefix(f.MimeType, "image/") }

func (f RemoteFile) IsVideo() bool { return strings.HasPrefix(f.MimeType, "video/") }

// IsHidden reports dot-files, which are never reference candidates.
func (f RemoteFile) IsHidden() bool { return strings.HasPrefix(f.Name, ".") }

// IsProcessed is true iff the name carries the processing tag.
func IsProcessed(name string) bool { return strings.Contains(name, ProcessedTag) }

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeFileName maps a remote name onto the local filesystem alphabet.
func SafeFileName(name string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
}

func splitExt(name string) (base, ext string) {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i], name[i:]
	}
	return name, ""
}

// OutputName derives the artifact name uploaded for a source video,
// keeping the source extension.
func OutputName(source string) string {
	base, ext := splitExt(source)
	if ext == "" {
		ext = ".mp4"
	}
	return base + OutputTag + ext
}

// ProcessedName derives the post-upload rename of the source video.
func ProcessedName(source string) string {
	base, ext := splitExt(source)
	if ext == "" {
		ext = ".mp4"
	}
	return base + ProcessedTag + ext
}
