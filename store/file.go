package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/callinsight/call-pipeline/record"
)

// File stores one indented JSON document per record under a directory.
type File struct {
	dir string
	log logrus.FieldLogger
}

func NewFile(outputsRoot string, log logrus.FieldLogger) (*File, error) {
	dir := filepath.Join(outputsRoot, "analyses")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &File{dir: dir, log: log}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// writeJSON writes through a temp file so readers never see half a record.
func writeJSON(path string, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (f *File) Put(_ context.Context, key string, r *record.AnalysisRecord) error {
	b, err := record.Marshal(r)
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	if err := writeJSON(f.path(key), b); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (f *File) Get(_ context.Context, key string) (*record.AnalysisRecord, error) {
	b, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	r, malformed, err := record.Unmarshal(b)
	if err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}
	if malformed {
		f.log.WithField("file_key", key).Warn("stored sentiment analysis malformed, using defaults")
	}
	return r, nil
}

func (f *File) List(_ context.Context) ([]record.Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, &Error{Op: "list", Err: err}
	}
	out := []record.Summary{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			return nil, &Error{Op: "list", Key: name, Err: err}
		}
		r, _, err := record.Unmarshal(b)
		if err != nil {
			f.log.WithError(err).WithField("file", name).Warn("skipping unreadable record")
			continue
		}
		out = append(out, r.Summarize())
	}
	sortSummaries(out)
	return out, nil
}

func (f *File) Close() error { return nil }
