package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/idempotency"
)

func TestStore_ExpiredRecordIsAbsent(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0).UTC()
	s := NewStore(time.Hour, func() time.Time { return now })
	fp := idempotency.Fingerprint{
		Key:    "k1",
		Owner:  domain.OwnerID("owner-1"),
		Method: "POST",
		Route:  "/products",
	}
	if err := s.Put(context.Background(), fp, idempotency.Record{StatusCode: 201, Body: []byte(`{}`)}); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	if _, ok, _ := s.Get(context.Background(), fp); !ok {
		t.Fatalf("Get() ok=false right after Put")
	}

	now = now.Add(2 * time.Hour)
	if _, ok, err := s.Get(context.Background(), fp); err != nil || ok {
		t.Fatalf("Get() after ttl ok=%v err=%v, want absent", ok, err)
	}
}

func TestStore_ScopedByOwner(t *testing.T) {
	t.Parallel()

	s := NewStore(0, nil)
	fp := idempotency.Fingerprint{Key: "k1", Owner: "a", Method: "POST", Route: "/products"}
	if err := s.Put(context.Background(), fp, idempotency.Record{StatusCode: 201}); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	other := fp
	other.Owner = "b"
	if _, ok, _ := s.Get(context.Background(), other); ok {
		t.Fatalf("record leaked across owners")
	}
}
