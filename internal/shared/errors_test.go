package shared

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tt := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: fmt.Errorf("%w: missing deviceId", ErrValidation), want: KindValidation},
		{name: "not found", err: fmt.Errorf("%w: device D1", ErrNotFound), want: KindNotFound},
		{name: "not linked", err: fmt.Errorf("%w: device D1", ErrNotLinked), want: KindNotLinked},
		{name: "constraint", err: fmt.Errorf("%w: D1", ErrConstraintViolation), want: KindConstraintViolation},
		{name: "upstream auth", err: fmt.Errorf("%w: revoked", ErrUpstreamAuth), want: KindUpstreamAuth},
		{name: "transient", err: fmt.Errorf("%w: dial tcp", ErrUpstreamTransient), want: KindUpstreamTransient},
		{name: "upstream response", err: &UpstreamError{Status: 503, Body: []byte("oops")}, want: KindUpstream},
		{name: "wrapped upstream response", err: fmt.Errorf("fetch: %w", &UpstreamError{Status: 500}), want: KindUpstream},
		{name: "transcode", err: fmt.Errorf("%w: bad header", ErrTranscode), want: KindTranscode},
		{name: "unknown", err: errors.New("boom"), want: KindInternal},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUpstreamError(t *testing.T) {
	err := &UpstreamError{Status: 401, Body: []byte(`{"error":"secret detail"}`)}

	if !errors.Is(err, ErrAPIRequest) {
		t.Error("expected UpstreamError to wrap ErrAPIRequest")
	}
	if strings.Contains(err.Error(), "secret detail") {
		t.Error("error string should not include the raw upstream body")
	}
	if strings.Contains(SafeMessage(err), "secret detail") {
		t.Error("safe message should not include the raw upstream body")
	}

	var target *UpstreamError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &target) || target.Status != 401 {
		t.Error("expected errors.As to recover the status")
	}
}
