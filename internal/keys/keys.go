// Package keys owns the storage object key layout. Keys are the wire
// contract between the upload path, the object store, and the analysis
// service, so generate and parse must stay exact inverses.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Processing modes.
const (
	ModeQuick    = "quick"
	ModeTraining = "training"
)

// Camera angles for training submissions.
const (
	AngleDownLine = "down_line"
	AngleFaceOn   = "face_on"
	AngleOverhead = "overhead"
)

// Swing categories.
var Categories = []string{"wood", "iron", "wedge", "chip", "putt"}

// TrainingAngles lists the three angles a training submission must provide.
var TrainingAngles = []string{AngleDownLine, AngleFaceOn, AngleOverhead}

const (
	quickPrefix = "quick/"
	trainPrefix = "train/"
)

// KeyConfig describes one object key to generate.
type KeyConfig struct {
	Mode     string
	UploadID string
	Category string
	Angle    string
	Ext      string
	// Timestamp defaults to the current time when zero.
	Timestamp time.Time
}

// ParsedKey is the structured inverse of a generated key.
type ParsedKey struct {
	Mode       string
	UploadID   string
	Category   string
	Angle      string
	Ext        string
	UnixMillis int64
}

// GenerateKey builds the object key for one uploaded file.
//
// Layouts:
//
//	quick/{uploadId}_{unixMillis}.{ext}
//	train/{uploadId}/{angle}_{category}_{unixMillis}.{ext}
func GenerateKey(cfg KeyConfig) (string, error) {
	uploadID := strings.TrimSpace(cfg.UploadID)
	if uploadID == "" || strings.ContainsAny(uploadID, "/_") {
		return "", fmt.Errorf("invalid upload id %q", cfg.UploadID)
	}
	ext := strings.TrimPrefix(strings.TrimSpace(cfg.Ext), ".")
	if ext == "" || strings.ContainsAny(ext, "/._") {
		return "", fmt.Errorf("invalid extension %q", cfg.Ext)
	}

	ts := cfg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	millis := ts.UnixMilli()

	switch cfg.Mode {
	case ModeQuick:
		return fmt.Sprintf("%s%s_%d.%s", quickPrefix, uploadID, millis, ext), nil
	case ModeTraining:
		if !ValidAngle(cfg.Angle) {
			return "", fmt.Errorf("invalid angle %q", cfg.Angle)
		}
		if !ValidCategory(cfg.Category) {
			return "", fmt.Errorf("invalid category %q", cfg.Category)
		}
		return fmt.Sprintf("%s%s/%s_%s_%d.%s", trainPrefix, uploadID, cfg.Angle, cfg.Category, millis, ext), nil
	default:
		return "", fmt.Errorf("invalid mode %q", cfg.Mode)
	}
}

// ParseKey inverts GenerateKey. It returns nil for any key that does not
// match either layout exactly.
func ParseKey(key string) *ParsedKey {
	switch {
	case strings.HasPrefix(key, quickPrefix):
		return parseQuick(strings.TrimPrefix(key, quickPrefix))
	case strings.HasPrefix(key, trainPrefix):
		return parseTrain(strings.TrimPrefix(key, trainPrefix))
	default:
		return nil
	}
}

func parseQuick(rest string) *ParsedKey {
	if strings.Contains(rest, "/") {
		return nil
	}
	base, ext, ok := splitExt(rest)
	if !ok {
		return nil
	}
	sep := strings.LastIndex(base, "_")
	if sep <= 0 || sep == len(base)-1 {
		return nil
	}
	uploadID := base[:sep]
	millis, err := strconv.ParseInt(base[sep+1:], 10, 64)
	if err != nil || strings.Contains(uploadID, "_") {
		return nil
	}
	return &ParsedKey{
		Mode:       ModeQuick,
		UploadID:   uploadID,
		Ext:        ext,
		UnixMillis: millis,
	}
}

func parseTrain(rest string) *ParsedKey {
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return nil
	}
	uploadID, name := parts[0], parts[1]
	if uploadID == "" || strings.ContainsAny(uploadID, "/_") || strings.Contains(name, "/") {
		return nil
	}
	base, ext, ok := splitExt(name)
	if !ok {
		return nil
	}

	// The angle itself contains underscores, so peel millis and category
	// off the right-hand side first.
	sep := strings.LastIndex(base, "_")
	if sep <= 0 {
		return nil
	}
	millis, err := strconv.ParseInt(base[sep+1:], 10, 64)
	if err != nil {
		return nil
	}
	base = base[:sep]
	sep = strings.LastIndex(base, "_")
	if sep <= 0 {
		return nil
	}
	category := base[sep+1:]
	angle := base[:sep]
	if !ValidAngle(angle) || !ValidCategory(category) {
		return nil
	}
	return &ParsedKey{
		Mode:       ModeTraining,
		UploadID:   uploadID,
		Category:   category,
		Angle:      angle,
		Ext:        ext,
		UnixMillis: millis,
	}
}

func splitExt(name string) (base, ext string, ok bool) {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 || dot == len(name)-1 {
		return "", "", false
	}
	ext = name[dot+1:]
	if strings.ContainsAny(ext, "._") {
		return "", "", false
	}
	return name[:dot], ext, true
}

// ValidAngle reports whether angle is one of the training angles.
func ValidAngle(angle string) bool {
	for _, a := range TrainingAngles {
		if a == angle {
			return true
		}
	}
	return false
}

// ValidCategory reports whether category is a known swing category.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// ValidMode reports whether mode is a known processing mode.
func ValidMode(mode string) bool {
	return mode == ModeQuick || mode == ModeTraining
}
