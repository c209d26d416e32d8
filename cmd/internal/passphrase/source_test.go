package passphrase

import (
	"io"
	"strings"
	"testing"
)

func testSource(env map[string]string, terminal bool, typed string) *Source {
	s := NewSource("RECYCLESS_TEST_PASS", "station key")
	s.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	s.isTerminal = func() bool { return terminal }
	s.readSecret = func() ([]byte, error) { return []byte(typed), nil }
	s.prompt = io.Discard
	return s
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s := testSource(map[string]string{"RECYCLESS_TEST_PASS": "from-env"}, true, "typed")
	got, err := s.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	s := testSource(map[string]string{"RECYCLESS_TEST_PASS": "  "}, true, "typed")
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected empty env value to be rejected")
	}
}

func TestSourcePromptsAndCaches(t *testing.T) {
	s := testSource(nil, true, "typed")
	calls := 0
	s.readSecret = func() ([]byte, error) {
		calls++
		return []byte("typed"), nil
	}
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		if err != nil || got != "typed" {
			t.Fatalf("got %q err=%v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one prompt, got %d", calls)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	_, err := testSource(nil, false, "").Get()
	if err == nil || !strings.Contains(err.Error(), "RECYCLESS_TEST_PASS") {
		t.Fatalf("expected error naming the env var, got %v", err)
	}
}
