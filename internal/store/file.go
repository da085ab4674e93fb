package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"media-resolver-go/internal/video"
)

// FileStore appends entries as JSON lines to one file per day.
type FileStore struct {
	Dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	if strings.TrimSpace(dir) == "" {
		dir = "data"
	}
	return &FileStore{Dir: dir}
}

func (s *FileStore) SaveResolution(ctx context.Context, e Entry) error {
	if err := prepareEntry(&e); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(s.Dir, fmt.Sprintf("resolutions_%s.jsonl", e.CreatedAt.Format("2006-01-02")))

	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(e)
}

func (s *FileStore) readAll() ([]Entry, error) {
	files, err := filepath.Glob(filepath.Join(s.Dir, "resolutions_*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []Entry
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var e Entry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				continue
			}
			out = append(out, e)
		}
		err = sc.Err()
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *FileStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)
	s.mu.Lock()
	all, err := s.readAll()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *FileStore) Video(ctx context.Context, platform, contentID string) (video.Record, bool, error) {
	s.mu.Lock()
	all, err := s.readAll()
	s.mu.Unlock()
	if err != nil {
		return video.Record{}, false, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if e.Success && e.Platform == platform && e.ContentID == contentID && e.Result.Record != nil {
			rec := *e.Result.Record
			if rec.ContentID == "" {
				rec.ContentID = e.ContentID
			}
			return rec, true, nil
		}
	}
	return video.Record{}, false, nil
}

func (s *FileStore) Close() error { return nil }
