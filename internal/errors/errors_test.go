package errors

import (
	"errors"
	"testing"
)

func TestFlushErrorUnwraps(t *testing.T) {
	cause := errors.New("disk gone")
	err := &FlushError{BucketKey: "p1_f1", InstantTime: "20240102030405678", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(FlushError, cause) = false, want true")
	}
	if err.Error() == "" {
		t.Error("Error() is empty")
	}
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("403")
	err := &StorageError{Operation: "put", Path: "a/b", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(StorageError, cause) = false, want true")
	}
}

func TestCommitErrorUnwraps(t *testing.T) {
	cause := errors.New("marker write failed")
	err := &CommitError{InstantTime: "20240102030405678", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(CommitError, cause) = false, want true")
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNoInflightInstant, true},
		{ErrNotAccepting, true},
		{ErrConfirmationTimeout, true},
		{ErrUnsupportedOperation, true},
		{ErrEmptyBucket, false},
		{&FlushError{Err: ErrNoInflightInstant}, true},
		{&FlushError{Err: errors.New("io")}, false},
	}

	for _, tc := range cases {
		if got := IsFatal(tc.err); got != tc.want {
			t.Errorf("IsFatal(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
