package gradio

import (
	"fmt"
	"os"

	"github.com/mexwill790-beep/wan/internal/domain/entity"
)

// resultKeys are checked in order when the result is a mapping.
var resultKeys = [...]string{"video", "path", "output", "file"}

type statFunc func(path string) bool

func localFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// NormalizeResult maps every accepted result variant onto the local
// artifact path it names:
//
//	string  -> the path itself, if it names an existing local file
//	sequence -> the first string element naming an existing local file
//	mapping -> the first hit among the video, path, output, file keys
//
// Anything else, remote URLs included, is entity.ErrUnsupportedResult.
func NormalizeResult(result any) (string, error) {
	return normalizeResult(result, localFileExists)
}

func normalizeResult(result any, exists statFunc) (string, error) {
	switch v := result.(type) {
	case string:
		if exists(v) {
			return v, nil
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && exists(s) {
				return s, nil
			}
		}
	case map[string]any:
		for _, key := range resultKeys {
			if s, ok := v[key].(string); ok && exists(s) {
				return s, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %T (%v)", entity.ErrUnsupportedResult, result, result)
}
