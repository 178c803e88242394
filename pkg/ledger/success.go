package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"
)

// LegacySuccessFileName is the undated success file written by older runs
const LegacySuccessFileName = "success_codes.json"

// SuccessFileName returns the success file name for the UTC day of t
func SuccessFileName(t time.Time) string {
	return fmt.Sprintf("success_codes_%s.json", t.UTC().Format("20060102"))
}

// SuccessLog is the append-only, deduplicated list of accepted codes for one
// UTC day. All access is serialized; the legacy undated file is merged in on
// first use.
type SuccessLog struct {
	mu         sync.Mutex
	dir        string
	path       string
	legacyPath string
	migrated   bool
	logger     logger.Logger
}

// NewSuccessLog fixes the day tag from now once; pass time.Now outside tests
func NewSuccessLog(dir string, now func() time.Time, log logger.Logger) *SuccessLog {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SuccessLog{
		dir:        dir,
		path:       filepath.Join(dir, SuccessFileName(now())),
		legacyPath: filepath.Join(dir, LegacySuccessFileName),
		logger:     log.WithField("component", "success_log"),
	}
}

// Path returns the current day's success file
func (s *SuccessLog) Path() string {
	return s.path
}

// Append records code unless it is already listed. It reports whether the
// code was newly added.
func (s *SuccessLog) Append(code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	for _, existing := range codes {
		if existing == code {
			return false, nil
		}
	}

	codes = append(codes, code)
	if err := writeJSONAtomic(s.path, codes); err != nil {
		return false, errs.Persistence(err, "append accepted code %s", code)
	}

	s.logger.InfoWithFields("Accepted code recorded", map[string]interface{}{
		"code":  code,
		"path":  s.path,
		"total": len(codes),
	})
	return true, nil
}

// List returns the current day's accepted codes in insertion order
func (s *SuccessLog) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked()
}

// Ensure creates an empty success file for the day when none exists
func (s *SuccessLog) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadLocked(); err != nil {
		return err
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	if err := writeJSONAtomic(s.path, []string{}); err != nil {
		return errs.Persistence(err, "create success list")
	}
	return nil
}

// loadLocked reads the dated list, migrating the legacy file the first time.
// The caller holds s.mu.
func (s *SuccessLog) loadLocked() ([]string, error) {
	codes, err := readCodes(s.path)
	if err != nil {
		s.logger.WithError(err).Warn("Ignoring unreadable success list")
		codes = nil
	}
	if codes == nil {
		codes = []string{}
	}

	if s.migrated {
		return codes, nil
	}

	if _, err := os.Stat(s.legacyPath); os.IsNotExist(err) {
		s.migrated = true
		return codes, nil
	}
	legacy, err := readCodes(s.legacyPath)
	if err != nil {
		s.logger.WithError(err).Warn("Leaving unreadable legacy success list in place")
		s.migrated = true
		return codes, nil
	}

	merged := mergeUnique(codes, legacy)
	if err := writeJSONAtomic(s.path, merged); err != nil {
		return nil, errs.Persistence(err, "migrate legacy success list")
	}
	s.migrated = true

	if err := os.Remove(s.legacyPath); err != nil {
		s.logger.WithError(err).WarnWithFields("Could not remove legacy success list", map[string]interface{}{
			"path": s.legacyPath,
		})
	}
	s.logger.InfoWithFields("Legacy success list migrated", map[string]interface{}{
		"from":   s.legacyPath,
		"to":     s.path,
		"merged": len(merged) - len(codes),
	})
	return merged, nil
}

// mergeUnique appends the entries of extra not already present, keeping order
func mergeUnique(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, code := range list {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}
