package ledger

import (
	"os"
	"path/filepath"
	"sort"

	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"
)

// TriedFileName is the file backend's tried-set file inside the state directory
const TriedFileName = "tried_codes.json"

// Store persists the tried set
type Store interface {
	Load() (map[string]struct{}, error)
	Save(tried map[string]struct{}) error
}

// FileStore keeps the tried set as a sorted JSON array
type FileStore struct {
	path   string
	logger logger.Logger
}

// NewFileStore returns a FileStore for tried_codes.json in dir
func NewFileStore(dir string, log logger.Logger) *FileStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FileStore{
		path:   filepath.Join(dir, TriedFileName),
		logger: log.WithField("component", "ledger"),
	}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the persisted tried set. An absent or unreadable file yields
// an empty set and a warning.
func (s *FileStore) Load() (map[string]struct{}, error) {
	codes, err := readCodes(s.path)
	if err != nil {
		s.logger.WithError(err).WarnWithFields("Ignoring unreadable tried set", map[string]interface{}{
			"path": s.path,
		})
		return make(map[string]struct{}), nil
	}

	tried := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		tried[code] = struct{}{}
	}
	return tried, nil
}

// Save atomically rewrites the whole tried set
func (s *FileStore) Save(tried map[string]struct{}) error {
	if err := writeJSONAtomic(s.path, sortedCodes(tried)); err != nil {
		return errs.Persistence(err, "save tried set")
	}
	s.logger.DebugWithFields("Tried set saved", map[string]interface{}{
		"count": len(tried),
	})
	return nil
}

// Ensure creates an empty tried set file when none exists
func (s *FileStore) Ensure() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	if err := writeJSONAtomic(s.path, []string{}); err != nil {
		return errs.Persistence(err, "create tried set")
	}
	return nil
}

func sortedCodes(set map[string]struct{}) []string {
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
