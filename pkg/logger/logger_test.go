package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfoAndText(t *testing.T) {
	l := New(Config{})
	if l.Logger.Level != logrus.InfoLevel {
		t.Fatalf("expected default level info, got %v", l.Logger.Level)
	}
	if _, ok := l.Logger.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("expected default formatter text, got %T", l.Logger.Formatter)
	}
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	l := New(Config{Level: "not-a-level"})
	if l.Logger.Level != logrus.InfoLevel {
		t.Fatalf("expected fallback level info, got %v", l.Logger.Level)
	}
}

func TestNewJSONFormat(t *testing.T) {
	l := New(Config{Format: "json"})
	if _, ok := l.Logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", l.Logger.Formatter)
	}

	var buf bytes.Buffer
	l.Logger.SetOutput(&buf)
	l.Logger.Info("hello")

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", buf.String(), err)
	}
	if decoded["msg"] != "hello" {
		t.Fatalf("expected msg=hello, got %+v", decoded)
	}
}

func TestNewFileOutputWritesToLogsDir(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	l := New(Config{Output: "file", FilePrefix: "test-cli"})
	l.Logger.Info("written to file")

	contents, err := os.ReadFile(filepath.Join(dir, "logs", "test-cli.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(contents) == 0 {
		t.Fatal("expected non-empty log file contents")
	}
}

func TestWithFieldAttachesField(t *testing.T) {
	l := New(Config{Format: "json"})
	var buf bytes.Buffer
	l.Logger.SetOutput(&buf)

	l.WithField("command", "create-key").Info("issued")

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON line: %v", err)
	}
	if decoded["command"] != "create-key" {
		t.Fatalf("expected command field, got %+v", decoded)
	}
}
