package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestString(t *testing.T) {
	c := Config{"key": "value", "empty": ""}
	if got := c.String("key", "def"); got != "value" {
		t.Errorf("String = %q", got)
	}
	if got := c.String("missing", "def"); got != "def" {
		t.Errorf("missing = %q", got)
	}
	if got := c.String("empty", "def"); got != "def" {
		t.Errorf("empty = %q", got)
	}
}

func TestRequire(t *testing.T) {
	c := Config{"bucket": "b"}
	if v, err := c.Require("s3", "bucket"); err != nil || v != "b" {
		t.Fatalf("Require = %q, %v", v, err)
	}
	_, err := c.Require("s3", "region")
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Backend != "s3" || ce.Field != "region" {
		t.Fatalf("err = %#v", err)
	}
}

func TestTypedGetters(t *testing.T) {
	c := Config{
		"yes": "YES", "no": "0", "bad": "maybe",
		"num": "42", "big": "9223372036854775807",
		"dur": "5s", "secs": "10",
	}

	if v, err := c.Bool("yes", false); err != nil || !v {
		t.Errorf("Bool yes = %v, %v", v, err)
	}
	if v, err := c.Bool("no", true); err != nil || v {
		t.Errorf("Bool no = %v, %v", v, err)
	}
	if v, err := c.Bool("missing", true); err != nil || !v {
		t.Errorf("Bool missing = %v, %v", v, err)
	}
	if _, err := c.Bool("bad", false); err == nil {
		t.Error("Bool bad: expected error")
	}

	if v, err := c.Int("num", 0); err != nil || v != 42 {
		t.Errorf("Int = %d, %v", v, err)
	}
	if _, err := c.Int("bad", 0); err == nil {
		t.Error("Int bad: expected error")
	}
	if v, err := c.Int64("big", 0); err != nil || v != 9223372036854775807 {
		t.Errorf("Int64 = %d, %v", v, err)
	}

	if v, err := c.Duration("dur", 0); err != nil || v != 5*time.Second {
		t.Errorf("Duration = %v, %v", v, err)
	}
	if v, err := c.Duration("secs", 0); err != nil || v != 10*time.Second {
		t.Errorf("Duration secs = %v, %v", v, err)
	}
	if _, err := c.Duration("bad", 0); err == nil {
		t.Error("Duration bad: expected error")
	}
}

func TestFieldTagsBackend(t *testing.T) {
	_, err := Config{"db": "x"}.Int("db", 0)
	err = Field("redis", err)
	if got, want := err.Error(), `redis: db="x": must be an integer`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if Field("redis", nil) != nil {
		t.Error("Field(nil) should be nil")
	}
}

func TestMerge(t *testing.T) {
	base := map[string]string{"a": "1", "b": "2"}
	over := map[string]string{"b": "3", "c": "4"}
	got := Merge(base, over)
	if got["a"] != "1" || got["b"] != "3" || got["c"] != "4" {
		t.Errorf("Merge = %v", got)
	}
	if base["b"] != "2" {
		t.Error("Merge modified base")
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("/abs/./path"); got != "/abs/path" {
		t.Errorf("abs = %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("empty = %q", got)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got, want := ExpandPath("~/data/contracts"), filepath.Join(home, "data/contracts"); got != want {
		t.Errorf("home = %q, want %q", got, want)
	}
}

func TestConfigErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{"backend only", &ConfigError{Backend: "badger", Message: "failed"}, "badger: failed"},
		{"field", NewConfigError("badger", "path", "required"), "badger: path: required"},
		{"value", NewConfigError("badger", "path", "invalid").WithValue("/tmp"), `badger: path="/tmp": invalid`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	cause := errors.New("underlying")
	if !errors.Is(NewConfigError("s3", "bucket", "bad").WithCause(cause), cause) {
		t.Error("cause not unwrapped")
	}
}
