package optimistic

import (
	"sync/atomic"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	clockport "github.com/Overland-East-Bay/stockroom/internal/ports/out/clock"
)

// TokenSource issues correlation tokens: the creation time in nanoseconds, bumped
// past the previous token when two creations land in the same tick.
//
// Safe for concurrent use; every call returns a distinct, increasing token.
type TokenSource struct {
	clk  clockport.Clock
	last atomic.Int64
}

func NewTokenSource(clk clockport.Clock) *TokenSource {
	return &TokenSource{clk: clk}
}

func (s *TokenSource) Next() domain.CorrelationToken {
	now := s.clk.Now().UnixNano()
	for {
		last := s.last.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if s.last.CompareAndSwap(last, next) {
			return domain.CorrelationToken(next)
		}
	}
}
