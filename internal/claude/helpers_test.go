package claude

import (
	"context"
	"sync/atomic"
)

type stubRefresher struct {
	calls atomic.Int32
	err   error
}

func (s *stubRefresher) Refresh(context.Context) error {
	s.calls.Add(1)
	return s.err
}
