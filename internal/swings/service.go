package swings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"swing-backend/internal/keys"
	"swing-backend/internal/quota"
	"swing-backend/internal/ratelimit"
	"swing-backend/internal/shared/metrics"
	"swing-backend/internal/shared/storage/object"
	"swing-backend/internal/shared/telemetry"
	"swing-backend/internal/shared/util"
)

// quickPart is the perFile slot name for a quick-mode submission, which has
// no camera angle.
const quickPart = "video"

// Enqueuer creates the work ticket for an accepted swing. Implemented by
// the queue repository.
type Enqueuer interface {
	Enqueue(ctx context.Context, swingID string) error
}

// FileUpload is one video part of a submission. Open is called at most once,
// on the upload goroutine.
type FileUpload struct {
	Angle       string
	FileName    string
	ContentType string
	SizeBytes   int64
	Open        func() (io.ReadCloser, error)
}

// FileResult reports the outcome for one part independently: a training
// submission can land some angles and lose others.
type FileResult struct {
	Key       string `json:"key,omitempty"`
	SizeBytes int64  `json:"size,omitempty"`
	Uploaded  bool   `json:"uploaded"`
	Error     string `json:"error,omitempty"`
}

// SubmitInput carries one authenticated submission.
type SubmitInput struct {
	UserID    string
	Plan      string
	Mode      string
	Category  string
	Files     []FileUpload
	RequestID string
}

// SubmitResult is the gateway outcome. Success is false for partial uploads,
// in which case no swing was created and PerFile names the failed parts.
type SubmitResult struct {
	Success   bool
	SwingID   string
	PerFile   map[string]FileResult
	Lifecycle *keys.LifecycleRule
}

// Service is the ingestion gateway: it owns admission control, validation,
// object uploads, and the swing + queue-item writes.
type Service struct {
	Repo    Repo
	Queue   Enqueuer
	Store   object.ObjectStore
	Limiter *ratelimit.Limiter
	Guard   *quota.Guard

	MaxFileBytes        int64
	MaxTotalBytes       int64
	AllowedContentTypes []string
}

// Submit runs the full admission pipeline for one submission. Admission
// failures come back as ErrRateLimited, *ValidationError, or *QuotaError;
// partial upload failures come back as a non-Success result, not an error.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	if s.Limiter != nil && !s.Limiter.Admit(ctx, in.UserID) {
		metrics.IncUploadsRejected("rate_limited")
		return SubmitResult{}, ErrRateLimited
	}

	if err := s.validate(in); err != nil {
		metrics.IncUploadsRejected("validation")
		return SubmitResult{}, err
	}

	if s.Guard != nil {
		decision := s.Guard.CheckUpload(ctx, in.UserID, in.Plan, in.Mode)
		if !decision.Allowed {
			metrics.IncUploadsRejected("quota")
			return SubmitResult{}, &QuotaError{Decision: decision}
		}
	}

	uploadSessionID := strings.ReplaceAll(uuid.NewString(), "-", "")
	now := time.Now().UTC()

	perFile, hashes, totalBytes := s.uploadAll(ctx, in, uploadSessionID, now)

	allUploaded := true
	for _, result := range perFile {
		if !result.Uploaded {
			allUploaded = false
			break
		}
	}

	result := SubmitResult{PerFile: perFile}
	if rule := lifecycleFor(perFile); rule != nil {
		result.Lifecycle = rule
	}

	if !allUploaded {
		telemetry.Warn("swings.submit.partial", map[string]any{
			"request_id": in.RequestID,
			"user_id":    in.UserID,
			"mode":       in.Mode,
			"session_id": uploadSessionID,
		})
		return result, nil
	}

	swing := Swing{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		Category:        in.Category,
		Mode:            in.Mode,
		Status:          StatusQueued,
		ObjectKeys:      objectKeys(perFile),
		UploadSessionID: uploadSessionID,
		ContentHash:     combinedHash(hashes),
		SizeBytes:       totalBytes,
		CreatedAt:       now,
	}

	if err := s.Repo.Create(ctx, swing); err != nil {
		return SubmitResult{}, fmt.Errorf("create swing: %w", err)
	}
	if err := s.Queue.Enqueue(ctx, swing.ID); err != nil {
		// The swing exists but has no work ticket; fail it rather than
		// leave it queued forever.
		if updateErr := s.Repo.UpdateStatus(ctx, swing.ID, StatusFailed, "enqueue failed: "+err.Error()); updateErr != nil {
			telemetry.Error("swings.submit.enqueue_cleanup_failed", map[string]any{
				"swing_id": swing.ID,
				"error":    updateErr.Error(),
			})
		}
		return SubmitResult{}, fmt.Errorf("enqueue swing: %w", err)
	}

	metrics.IncUploadsAccepted()
	telemetry.Info("swings.submit.accepted", map[string]any{
		"request_id": in.RequestID,
		"user_id":    in.UserID,
		"swing_id":   swing.ID,
		"mode":       in.Mode,
		"category":   in.Category,
		"files":      len(in.Files),
		"bytes":      totalBytes,
	})

	result.Success = true
	result.SwingID = swing.ID
	return result, nil
}

// GetForUser returns a swing scoped to its owner.
func (s *Service) GetForUser(ctx context.Context, userID, swingID string) (Swing, error) {
	return s.Repo.GetByUser(ctx, userID, swingID)
}

// ListForUser lists the user's swings newest-first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Swing, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) validate(in SubmitInput) error {
	if !keys.ValidMode(in.Mode) {
		return &ValidationError{Msg: fmt.Sprintf("invalid mode %q", in.Mode)}
	}
	if !keys.ValidCategory(in.Category) {
		return &ValidationError{Msg: fmt.Sprintf("invalid category %q", in.Category)}
	}

	switch in.Mode {
	case keys.ModeQuick:
		if len(in.Files) != 1 {
			return &ValidationError{Msg: "quick mode requires exactly one video"}
		}
	case keys.ModeTraining:
		if len(in.Files) != len(keys.TrainingAngles) {
			return &ValidationError{Msg: "training mode requires down_line, face_on, and overhead videos"}
		}
		seen := map[string]bool{}
		for _, f := range in.Files {
			if !keys.ValidAngle(f.Angle) || seen[f.Angle] {
				return &ValidationError{Msg: "training mode requires down_line, face_on, and overhead videos"}
			}
			seen[f.Angle] = true
		}
	}

	var total int64
	for _, f := range in.Files {
		if !s.contentTypeAllowed(f.ContentType) {
			return &ValidationError{
				Msg:     fmt.Sprintf("content type %q is not allowed", f.ContentType),
				Details: map[string]any{"allowed": s.AllowedContentTypes},
			}
		}
		if f.SizeBytes <= 0 || (s.MaxFileBytes > 0 && f.SizeBytes > s.MaxFileBytes) {
			return &ValidationError{
				Msg:     fmt.Sprintf("file %q exceeds the per-file size limit", f.FileName),
				Details: map[string]any{"maxFileBytes": s.MaxFileBytes},
			}
		}
		total += f.SizeBytes
	}
	if s.MaxTotalBytes > 0 && total > s.MaxTotalBytes {
		return &ValidationError{
			Msg:     "submission exceeds the total size limit",
			Details: map[string]any{"maxTotalBytes": s.MaxTotalBytes},
		}
	}
	return nil
}

// uploadAll streams every part to the object store concurrently and collects
// per-part outcomes independently.
func (s *Service) uploadAll(ctx context.Context, in SubmitInput, uploadSessionID string, ts time.Time) (map[string]FileResult, map[string]string, int64) {
	type slot struct {
		part   string
		result FileResult
		hash   string
	}

	slots := make([]slot, len(in.Files))
	var wg sync.WaitGroup
	for i := range in.Files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			file := in.Files[i]
			part := file.Angle
			if in.Mode == keys.ModeQuick {
				part = quickPart
			}
			slots[i].part = part

			key, err := keys.GenerateKey(keys.KeyConfig{
				Mode:      in.Mode,
				UploadID:  uploadSessionID,
				Category:  in.Category,
				Angle:     file.Angle,
				Ext:       extFor(file.ContentType, file.FileName),
				Timestamp: ts,
			})
			if err != nil {
				slots[i].result = FileResult{Error: err.Error()}
				return
			}

			reader, err := file.Open()
			if err != nil {
				slots[i].result = FileResult{Key: key, Error: "open upload: " + err.Error()}
				return
			}
			defer reader.Close()

			hasher := sha256.New()
			size, err := s.Store.SaveWithKey(ctx, key, file.ContentType, io.TeeReader(reader, hasher))
			if err != nil {
				telemetry.Error("swings.upload.failed", map[string]any{
					"request_id": in.RequestID,
					"user_id":    in.UserID,
					"key":        key,
					"error":      err.Error(),
				})
				slots[i].result = FileResult{Key: key, Error: "upload failed"}
				return
			}

			slots[i].result = FileResult{Key: key, SizeBytes: size, Uploaded: true}
			slots[i].hash = hex.EncodeToString(hasher.Sum(nil))
		}(i)
	}
	wg.Wait()

	perFile := make(map[string]FileResult, len(slots))
	hashes := make(map[string]string, len(slots))
	var total int64
	for _, sl := range slots {
		perFile[sl.part] = sl.result
		if sl.result.Uploaded {
			hashes[sl.part] = sl.hash
			total += sl.result.SizeBytes
		}
	}
	return perFile, hashes, total
}

func (s *Service) contentTypeAllowed(contentType string) bool {
	for _, allowed := range s.AllowedContentTypes {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

func objectKeys(perFile map[string]FileResult) map[string]string {
	out := make(map[string]string, len(perFile))
	for part, result := range perFile {
		out[part] = result.Key
	}
	return out
}

// combinedHash derives one content hash for the submission from the per-part
// hashes, stable across part ordering.
func combinedHash(hashes map[string]string) string {
	if len(hashes) == 0 {
		return ""
	}
	if len(hashes) == 1 {
		for _, h := range hashes {
			return h
		}
	}
	parts := make([]string, 0, len(hashes))
	for part, h := range hashes {
		parts = append(parts, part+":"+h)
	}
	sort.Strings(parts)
	return util.HashBytesHex([]byte(strings.Join(parts, "\n")))
}

func lifecycleFor(perFile map[string]FileResult) *keys.LifecycleRule {
	for _, result := range perFile {
		if result.Key != "" {
			return keys.LifecycleRuleFor(result.Key)
		}
	}
	return nil
}

var extByContentType = map[string]string{
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/webm":      "webm",
}

func extFor(contentType, fileName string) string {
	if ext, ok := extByContentType[strings.ToLower(strings.TrimSpace(contentType))]; ok {
		return ext
	}
	if ext := strings.TrimPrefix(path.Ext(fileName), "."); ext != "" && !strings.ContainsAny(ext, "/._") {
		return strings.ToLower(ext)
	}
	return "mp4"
}
