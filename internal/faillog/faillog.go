// Package faillog writes per-receipt failure records to disk so that
// operators can replay or audit disclosures the pipeline gave up on.
package faillog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Record is the persisted failure document, one JSON file per receipt.
type Record struct {
	RecordedAt        string         `json:"recorded_at"`
	FailureReason     string         `json:"failure_reason"`
	DisclosureDetails map[string]any `json:"disclosure_details"`
}

// Recorder persists failure records under a directory. A Recorder with an
// empty directory is a no-op; failure logging must never take down the
// pipeline, so write errors are logged and swallowed.
type Recorder struct {
	dir    string
	logger *zap.Logger
}

// NewRecorder prepares the target directory. An empty dir disables the
// recorder; an uncreatable dir degrades to disabled with a warning.
func NewRecorder(dir string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		return &Recorder{logger: logger}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("failure log directory unavailable, records disabled",
			zap.String("dir", dir),
			zap.Error(err),
		)
		return &Recorder{logger: logger}
	}
	return &Recorder{dir: dir, logger: logger}
}

// Enabled reports whether records will actually be written.
func (r *Recorder) Enabled() bool { return r.dir != "" }

// Record writes {dir}/{receiptNo}.json, overwriting any earlier record for
// the same receipt so the file always reflects the latest failure.
func (r *Recorder) Record(receiptNo, reason string, details map[string]any) {
	if r.dir == "" {
		return
	}
	rec := Record{
		RecordedAt:        time.Now().UTC().Format(time.RFC3339),
		FailureReason:     reason,
		DisclosureDetails: details,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		r.logger.Warn("failure record not serializable",
			zap.String("rcept_no", receiptNo),
			zap.Error(err),
		)
		return
	}
	path := filepath.Join(r.dir, fmt.Sprintf("%s.json", receiptNo))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.logger.Warn("failure record not written",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}
