package remoteconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/drallgood/book-catalog/internal/logger"
)

// FileFetcher reads parameters from a local YAML or JSON file mapping keys
// to values. A value may be a string holding a document, or the document
// itself written as a nested mapping or sequence.
type FileFetcher struct {
	path string
	log  *logger.Logger
}

// NewFileFetcher creates a fetcher for path
func NewFileFetcher(path string, log *logger.Logger) *FileFetcher {
	if log == nil {
		log = logger.Get()
	}
	return &FileFetcher{path: path, log: log.Component("file_fetcher")}
}

// Fetch implements Fetcher. The file is re-read on every call.
func (f *FileFetcher) Fetch(ctx context.Context, keys []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("error reading parameters file %s: %w", f.path, err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing parameters file %s: %w", f.path, err)
	}

	values := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := doc[k]
		if !ok {
			continue
		}
		s, err := stringValue(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		values[k] = s
	}
	return values, nil
}

func stringValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
