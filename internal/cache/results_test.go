package cache

import (
	"fmt"
	"testing"
	"time"

	"echoreach/internal/models"
)

func resultSetWithPosts(ids ...string) models.ResultSet {
	rs := models.ResultSet{Source: models.SourceLive}
	for _, id := range ids {
		rs.Posts = append(rs.Posts, models.Post{ID: id})
	}
	return rs
}

func TestSignature_NormalizesQuery(t *testing.T) {
	filters := models.SearchFilters{Language: "en", MaxResults: 10}

	a := Signature("golang  designer", filters)
	b := Signature("Designer GOLANG", filters)
	if a != b {
		t.Error("keyword order, case and whitespace should not change the signature")
	}

	c := Signature("golang designer", models.SearchFilters{Language: "de", MaxResults: 10})
	if a == c {
		t.Error("different filters must produce different signatures")
	}
}

func TestCache_PutGetFreshness(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	now := func() time.Time { return clock }
	c := NewWithOptions(8, 15*time.Minute, func() time.Time { return now() })

	sig := Signature("anyone know a good designer", models.SearchFilters{})
	c.Put(sig, resultSetWithPosts("1", "2"))

	e, ok := c.Get(sig)
	if !ok {
		t.Fatal("entry should be present immediately after Put")
	}
	if !c.IsFresh(e) {
		t.Error("entry should be fresh immediately after Put")
	}

	// After the freshness window the entry is stale but still present.
	clock = clock.Add(16 * time.Minute)
	e, ok = c.Get(sig)
	if !ok {
		t.Fatal("stale entry must still be returned by Get (staleness != absence)")
	}
	if c.IsFresh(e) {
		t.Error("entry older than the freshness window must not report fresh")
	}
	if len(e.Payload.Posts) != 2 {
		t.Errorf("stale entry payload lost: got %d posts, want 2", len(e.Payload.Posts))
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	c := NewWithOptions(3, 15*time.Minute, func() time.Time { return clock })

	sigs := make([]string, 4)
	for i := 0; i < 3; i++ {
		sigs[i] = Signature(fmt.Sprintf("query %d", i), models.SearchFilters{})
		c.Put(sigs[i], resultSetWithPosts(fmt.Sprintf("%d", i)))
		clock = clock.Add(time.Second)
	}

	// Touch the oldest entry so it becomes most recently used.
	if _, ok := c.Get(sigs[0]); !ok {
		t.Fatal("expected entry 0 present")
	}
	clock = clock.Add(time.Second)

	sigs[3] = Signature("query 3", models.SearchFilters{})
	c.Put(sigs[3], resultSetWithPosts("3"))

	if c.Len() != 3 {
		t.Fatalf("cache size = %d, want capacity 3", c.Len())
	}
	if _, ok := c.Get(sigs[1]); ok {
		t.Error("entry 1 was least recently used and should have been evicted")
	}
	if _, ok := c.Get(sigs[0]); !ok {
		t.Error("recently touched entry 0 should have survived eviction")
	}
}

func TestCache_PutOverwritesAndRefreshes(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	c := NewWithOptions(8, 15*time.Minute, func() time.Time { return clock })

	sig := Signature("status update", models.SearchFilters{})
	c.Put(sig, resultSetWithPosts("old"))

	clock = clock.Add(20 * time.Minute)
	c.Put(sig, resultSetWithPosts("new"))

	e, ok := c.Get(sig)
	if !ok {
		t.Fatal("entry should be present")
	}
	if !c.IsFresh(e) {
		t.Error("overwritten entry should be fresh again")
	}
	if e.Payload.Posts[0].ID != "new" {
		t.Errorf("payload = %q, want overwritten value", e.Payload.Posts[0].ID)
	}
}

func TestCache_Reset(t *testing.T) {
	c := New()
	c.Put(Signature("a", models.SearchFilters{}), resultSetWithPosts("1"))
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("cache size after Reset = %d, want 0", c.Len())
	}
}
