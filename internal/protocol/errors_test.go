package protocol

import "testing"

func TestCodes(t *testing.T) {
	cases := []struct {
		code      string
		retryable bool
	}{
		{ErrProtoBadRequest, false},
		{ErrProtoVersion, false},
		{ErrWorldBusy, true},
		{ErrBadRequest, false},
		{ErrNotFound, false},
		{ErrInvalidTarget, false},
		{ErrConflict, false},
		{ErrInternal, false},
	}
	for _, tc := range cases {
		if !IsKnownCode(tc.code) {
			t.Fatalf("expected known code: %q", tc.code)
		}
		if Retryable(tc.code) != tc.retryable {
			t.Fatalf("%s retryable = %v", tc.code, !tc.retryable)
		}
		if Hint(tc.code) == "" {
			t.Fatalf("%s has no hint", tc.code)
		}
	}
	if !IsKnownCode("") {
		t.Fatalf("accepted ACK carries no code")
	}
	if IsKnownCode("E_NOT_DEFINED") || Hint("E_NOT_DEFINED") != "" {
		t.Fatalf("expected unknown code rejected")
	}
}
