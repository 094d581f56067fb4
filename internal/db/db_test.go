package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollReady_EventuallySucceeds(t *testing.T) {
	calls := 0
	err := PollReady(context.Background(), time.Second, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPollReady_Timeout(t *testing.T) {
	err := PollReady(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func(context.Context) error {
		return errors.New("connection refused")
	})
	var dbErr *Error
	if !errors.As(err, &dbErr) || dbErr.Op != OpPing {
		t.Fatalf("err = %v, want *db.Error with op PING", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestError_Unwrap(t *testing.T) {
	err := &Error{Op: OpHSet, Err: ErrKeyNotFound}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Error("errors.Is through db.Error failed")
	}
	if err.Error() != "HSET: db: key not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}
