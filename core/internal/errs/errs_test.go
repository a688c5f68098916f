package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"unsupported", Unsupported("NOT CONTAINS"), KindUnsupportedFeature},
		{"invalid", Invalid("bad uid %q", "x"), KindInvalidQuery},
		{"wrapped", fmt.Errorf("compile: %w", Internal("boom")), KindInternal},
		{"foreign", errors.New("other"), KindInternal},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("x: %w", Unsupported("EXISTS"))
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Error("expected errors.Is to match unsupported feature")
	}
	if errors.Is(err, ErrInvalidQuery) {
		t.Error("did not expect invalid query match")
	}
}

func TestRecover(t *testing.T) {
	run := func(v interface{}) (err error) {
		defer Recover(&err)
		panic(v)
	}

	if k := KindOf(run(Invalid("x"))); k != KindInvalidQuery {
		t.Errorf("kind = %v", k)
	}
	if k := KindOf(run("plain")); k != KindInternal {
		t.Errorf("kind = %v", k)
	}
	if st := StackOf(run(Invalid("x"))); st != nil {
		t.Errorf("compiler errors carry no stack, got %d bytes", len(st))
	}
}

func TestRecoverRuntimePanic(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		var m map[string][]int
		m["x"][0]++
		return nil
	}

	err := run()
	if k := KindOf(err); k != KindInternal {
		t.Fatalf("kind = %v", k)
	}
	st := string(StackOf(err))
	if !strings.Contains(st, "TestRecoverRuntimePanic") {
		t.Errorf("stack does not name the panicking function:\n%s", st)
	}
}

func TestWithPath(t *testing.T) {
	e := Unsupported("LIKE is not supported").WithPath("c/uid/value")
	if e.Error() != "LIKE is not supported: c/uid/value" {
		t.Errorf("unexpected message %q", e.Error())
	}
}
