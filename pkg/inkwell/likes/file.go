package likes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// FileStore keeps the ledger as a JSON array in a single file
type FileStore struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

// NewFileStore creates a file-backed ledger at path. The file is created on
// first write.
func NewFileStore(path string, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{path: path, log: log.Named("likes")}
}

// fileRecord is the on-disk shape of a typed record
type fileRecord struct {
	UserID int64 `json:"user_id"`
	PostID int64 `json:"post_id"`
	Liked  bool  `json:"liked"`
}

func (s *FileStore) ReadAll(ctx context.Context) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

func (s *FileStore) WriteAll(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAll(records)
}

func (s *FileStore) LikedPostIDs(ctx context.Context, userID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []int64{}
	seen := make(map[int64]bool)
	for _, r := range s.readAll() {
		if r.Valid() && r.UserID == userID && !seen[r.PostID] {
			seen[r.PostID] = true
			ids = append(ids, r.PostID)
		}
	}
	return ids
}

func (s *FileStore) Toggle(ctx context.Context, userID, postID int64, liked bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.readAll()
	for i, r := range records {
		if !r.Typed || r.UserID != userID || r.PostID != postID {
			continue
		}
		records[i].Liked = !r.Liked
		present := records[i].Liked
		if !present {
			records = append(records[:i], records[i+1:]...)
		}
		if err := s.writeAll(records); err != nil {
			return r.Liked, err
		}
		return present, nil
	}

	if !liked {
		return false, nil
	}
	records = append(records, Record{UserID: userID, PostID: postID, Liked: true, Typed: true})
	if err := s.writeAll(records); err != nil {
		return false, err
	}
	return true, nil
}

// readAll parses the ledger leniently: anything that is not an object is
// dropped, and objects with non-integer ids are kept verbatim but untyped.
func (s *FileStore) readAll() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("reading likes file", zap.String("path", s.path), zap.Error(err))
		}
		return []Record{}
	}
	if !gjson.ValidBytes(data) {
		s.log.Warn("likes file is not valid JSON, treating as empty", zap.String("path", s.path))
		return []Record{}
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		s.log.Warn("likes file is not a JSON array, treating as empty", zap.String("path", s.path))
		return []Record{}
	}

	records := []Record{}
	root.ForEach(func(_, entry gjson.Result) bool {
		if !entry.IsObject() {
			return true
		}
		userID, userOK := jsonInt(entry.Get("user_id"))
		postID, postOK := jsonInt(entry.Get("post_id"))
		r := Record{
			UserID: userID,
			PostID: postID,
			Liked:  entry.Get("liked").Type == gjson.True,
			Typed:  userOK && postOK,
		}
		if !r.Typed {
			r.raw = json.RawMessage(entry.Raw)
		}
		records = append(records, r)
		return true
	})
	return records
}

// jsonInt accepts only integral JSON numbers
func jsonInt(v gjson.Result) (int64, bool) {
	if v.Type != gjson.Number {
		return 0, false
	}
	n, err := strconv.ParseInt(v.Raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// writeAll replaces the file atomically through a temp file and rename
func (s *FileStore) writeAll(records []Record) error {
	entries := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		if !r.Typed && r.raw != nil {
			entries = append(entries, r.raw)
			continue
		}
		b, err := json.Marshal(fileRecord{UserID: r.UserID, PostID: r.PostID, Liked: r.Liked})
		if err != nil {
			return fmt.Errorf("encoding like: %w", err)
		}
		entries = append(entries, b)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding likes: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating likes directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".likes-*.json")
	if err != nil {
		return fmt.Errorf("creating temp likes file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing likes: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing likes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing likes: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing likes file: %w", err)
	}
	return nil
}
