package cache

import (
	"testing"
	"time"

	"ai-lessoncraft-be/pkg/store"

	"github.com/google/uuid"
)

func sampleResult(contentId, requesterId uuid.UUID) *store.JobResult {
	return &store.JobResult{
		ContentId:   contentId,
		RequesterId: requesterId,
		Theme:       "chalkboard",
		Units: []store.UnitArtifact{
			{UnitId: uuid.New(), Index: 0, Html: "<section>one</section>", KeyPoints: []string{"a"}},
			{UnitId: uuid.New(), Index: 1, Html: "<section>two</section>", Degraded: true, DegradedReason: "render timeout"},
		},
		GeneratedAt: time.Now(),
	}
}

func TestPutAndGetExactKey(t *testing.T) {
	c := NewResultCache(time.Minute, time.Minute)
	contentId, requesterId := uuid.New(), uuid.New()
	want := sampleResult(contentId, requesterId)

	if err := c.Put(contentId, requesterId, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found := c.Get(contentId, requesterId)
	if !found {
		t.Fatal("expected exact-key hit")
	}
	if len(got.Units) != 2 || got.Units[0].Html != want.Units[0].Html {
		t.Errorf("returned result does not match stored result")
	}
	if !got.Units[1].Degraded || got.Units[1].DegradedReason != "render timeout" {
		t.Error("degradation markers must survive the cache round trip")
	}
}

func TestGetFallsBackToLatest(t *testing.T) {
	c := NewResultCache(time.Minute, time.Minute)
	contentId := uuid.New()
	originalRequester := uuid.New()
	otherRequester := uuid.New()

	if err := c.Put(contentId, originalRequester, sampleResult(contentId, originalRequester)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found := c.Get(contentId, otherRequester)
	if !found {
		t.Fatal("a different requester should be served through the latest key")
	}
	if got.RequesterId != originalRequester {
		t.Errorf("latest entry requester = %s, want %s", got.RequesterId, originalRequester)
	}
}

func TestGetMissForUnknownContent(t *testing.T) {
	c := NewResultCache(time.Minute, time.Minute)
	if _, found := c.Get(uuid.New(), uuid.New()); found {
		t.Error("expected miss for never-stored content")
	}
}

func TestConcurrentPutsLastWriteWinsOnLatest(t *testing.T) {
	c := NewResultCache(time.Minute, time.Minute)
	contentId := uuid.New()
	first, second := uuid.New(), uuid.New()

	if err := c.Put(contentId, first, sampleResult(contentId, first)); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(contentId, second, sampleResult(contentId, second)); err != nil {
		t.Fatal(err)
	}

	// The exact key of the first writer is untouched.
	got, found := c.Get(contentId, first)
	if !found || got.RequesterId != first {
		t.Error("first writer's exact entry should survive the second write")
	}

	// The latest key reflects the most recent write.
	got, found = c.Get(contentId, uuid.New())
	if !found || got.RequesterId != second {
		t.Error("latest key should hold the most recent write")
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	c := NewResultCache(time.Minute, time.Minute)
	contentId, requesterId := uuid.New(), uuid.New()
	original := sampleResult(contentId, requesterId)

	if err := c.Put(contentId, requesterId, original); err != nil {
		t.Fatal(err)
	}

	// Mutating what the caller handed in must not reach the cache.
	original.Units[0].Html = "mutated"

	got, _ := c.Get(contentId, requesterId)
	if got.Units[0].Html == "mutated" {
		t.Error("cache entry aliases the caller's value")
	}

	// Mutating what the cache handed out must not reach the cache either.
	got.Units[0].KeyPoints[0] = "mutated"
	again, _ := c.Get(contentId, requesterId)
	if again.Units[0].KeyPoints[0] == "mutated" {
		t.Error("cache entry aliases a previously returned value")
	}
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	c := NewResultCache(30*time.Millisecond, 10*time.Millisecond)
	contentId, requesterId := uuid.New(), uuid.New()

	if err := c.Put(contentId, requesterId, sampleResult(contentId, requesterId)); err != nil {
		t.Fatal(err)
	}
	if _, found := c.Get(contentId, requesterId); !found {
		t.Fatal("entry should be readable before the TTL elapses")
	}

	time.Sleep(60 * time.Millisecond)

	if _, found := c.Get(contentId, requesterId); found {
		t.Error("entry should expire after the TTL; both keys must go together")
	}
}
