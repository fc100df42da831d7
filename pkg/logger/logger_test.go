package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()
	_ = SetLevelString("info")

	Get().Info(context.Background(), "blueprint created", String("author", "juan"), Int("points", 2))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "blueprint created" {
		t.Errorf("unexpected msg: %v", line["msg"])
	}
	if line["author"] != "juan" {
		t.Errorf("unexpected author: %v", line["author"])
	}
	if _, ok := line["source"]; !ok {
		t.Error("expected source attribute")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	ctx := context.Background()
	Get().Info(ctx, "hidden")
	Get().Warn(ctx, "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()
	_ = SetLevelString("info")

	Named("ws").With(String("session", "s-1")).Info(context.Background(), "joined")

	out := buf.String()
	if !strings.Contains(out, "component=ws") || !strings.Contains(out, "session=s-1") {
		t.Errorf("expected component and session attributes, got %q", out)
	}
}

func TestLoggerNestedNames(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = Init() }()
	_ = SetLevelString("info")

	Named("dispatcher").With(Int("shards", 2)).Named("shard-0").Info(context.Background(), "started")

	out := buf.String()
	if !strings.Contains(out, "component=dispatcher.shard-0") {
		t.Errorf("expected joined component, got %q", out)
	}
	if n := strings.Count(out, "component="); n != 1 {
		t.Errorf("expected one component attribute, got %d in %q", n, out)
	}
	if !strings.Contains(out, "shards=2") {
		t.Errorf("expected With fields to survive Named, got %q", out)
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	if err := SetLevelString("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if err := InitWithWriter(&bytes.Buffer{}, Format("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
