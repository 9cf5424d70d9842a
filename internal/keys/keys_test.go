package keys

import (
	"testing"
	"time"
)

func TestGenerateKeyQuickShape(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	key, err := GenerateKey(KeyConfig{
		Mode:      ModeQuick,
		UploadID:  "abc123",
		Ext:       "mp4",
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	want := "quick/abc123_1700000000000.mp4"
	if key != want {
		t.Fatalf("expected %q, got %q", want, key)
	}
}

func TestGenerateKeyTrainingShape(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	key, err := GenerateKey(KeyConfig{
		Mode:      ModeTraining,
		UploadID:  "abc123",
		Category:  "iron",
		Angle:     AngleDownLine,
		Ext:       "mov",
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	want := "train/abc123/down_line_iron_1700000000000.mov"
	if key != want {
		t.Fatalf("expected %q, got %q", want, key)
	}
}

func TestRoundTripAllConfigurations(t *testing.T) {
	ts := time.UnixMilli(1712345678901)

	cfgs := []KeyConfig{
		{Mode: ModeQuick, UploadID: "session-1", Ext: "mp4", Timestamp: ts},
		{Mode: ModeQuick, UploadID: "0f8fad5bbd9b", Ext: "webm", Timestamp: ts},
	}
	for _, angle := range TrainingAngles {
		for _, category := range Categories {
			cfgs = append(cfgs, KeyConfig{
				Mode:      ModeTraining,
				UploadID:  "session-2",
				Category:  category,
				Angle:     angle,
				Ext:       "mov",
				Timestamp: ts,
			})
		}
	}

	for _, cfg := range cfgs {
		key, err := GenerateKey(cfg)
		if err != nil {
			t.Fatalf("GenerateKey(%+v): %v", cfg, err)
		}
		parsed := ParseKey(key)
		if parsed == nil {
			t.Fatalf("ParseKey(%q) returned nil", key)
		}
		if parsed.Mode != cfg.Mode {
			t.Errorf("key %q: mode %q != %q", key, parsed.Mode, cfg.Mode)
		}
		if parsed.UploadID != cfg.UploadID {
			t.Errorf("key %q: upload id %q != %q", key, parsed.UploadID, cfg.UploadID)
		}
		if parsed.Category != cfg.Category {
			t.Errorf("key %q: category %q != %q", key, parsed.Category, cfg.Category)
		}
		if parsed.Angle != cfg.Angle {
			t.Errorf("key %q: angle %q != %q", key, parsed.Angle, cfg.Angle)
		}
		if parsed.Ext != cfg.Ext {
			t.Errorf("key %q: ext %q != %q", key, parsed.Ext, cfg.Ext)
		}
		if parsed.UnixMillis != ts.UnixMilli() {
			t.Errorf("key %q: millis %d != %d", key, parsed.UnixMillis, ts.UnixMilli())
		}
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"documents/abc_123.mp4",
		"quick/abc.mp4",
		"quick/abc_notmillis.mp4",
		"quick/abc_123",
		"quick/sub/abc_123.mp4",
		"train/abc_123.mp4",
		"train/session/down_line_iron.mp4",
		"train/session/sideways_iron_123.mp4",
		"train/session/down_line_banjo_123.mp4",
		"train/session/down_line_iron_123",
		"train/se_ssion/down_line_iron_123.mp4",
	}
	for _, key := range bad {
		if parsed := ParseKey(key); parsed != nil {
			t.Errorf("ParseKey(%q) = %+v, want nil", key, parsed)
		}
	}
}

func TestGenerateKeyRejectsBadInput(t *testing.T) {
	cases := []KeyConfig{
		{Mode: "batch", UploadID: "a", Ext: "mp4"},
		{Mode: ModeQuick, UploadID: "", Ext: "mp4"},
		{Mode: ModeQuick, UploadID: "a_b", Ext: "mp4"},
		{Mode: ModeQuick, UploadID: "a", Ext: ""},
		{Mode: ModeQuick, UploadID: "a", Ext: "tar.gz"},
		{Mode: ModeTraining, UploadID: "a", Category: "iron", Angle: "sideways", Ext: "mp4"},
		{Mode: ModeTraining, UploadID: "a", Category: "banjo", Angle: AngleFaceOn, Ext: "mp4"},
	}
	for _, cfg := range cases {
		if key, err := GenerateKey(cfg); err == nil {
			t.Errorf("GenerateKey(%+v) = %q, want error", cfg, key)
		}
	}
}

func TestLifecycleRuleFor(t *testing.T) {
	quick := LifecycleRuleFor("quick/abc_1700000000000.mp4")
	if quick == nil || quick.RetentionDays != 30 || quick.ArchiveDays != 0 {
		t.Fatalf("unexpected quick rule: %+v", quick)
	}
	train := LifecycleRuleFor("train/abc/down_line_iron_1700000000000.mp4")
	if train == nil || train.RetentionDays != 365 || train.ArchiveDays != 90 {
		t.Fatalf("unexpected train rule: %+v", train)
	}
	if rule := LifecycleRuleFor("documents/abc.pdf"); rule != nil {
		t.Fatalf("expected nil rule for unmanaged prefix, got %+v", rule)
	}
}
