package merge

import (
	"strconv"
	"testing"
	"time"

	"MarketPull/internal/domain/models"
)

func record(sourceID string, bid float64, observedAt time.Time) *models.CanonicalRecord {
	rec := &models.CanonicalRecord{
		SourceID: sourceID,
		Fields: []models.Field{
			{Name: "bid", Text: strconv.FormatFloat(bid, 'f', -1, 64), Num: bid, Numeric: true},
		},
		ObservedAt: observedAt,
		CrawledAt:  time.Now(),
	}
	rec.ContentHash = rec.Fingerprint()
	return rec
}

func archived(rec *models.CanonicalRecord) *models.ArchiveRecord {
	return &models.ArchiveRecord{CanonicalRecord: *rec, StoredAt: time.Now()}
}

func TestDecideInsertWhenNoLatest(t *testing.T) {
	rec := record("fx:cny_twd", 4.32, time.Now())
	if d := Decide(rec, nil); d != Insert {
		t.Fatalf("got %v, want insert", d)
	}
}

func TestDecideDropOnIdenticalHash(t *testing.T) {
	ts := time.Now()
	first := record("fx:cny_twd", 4.32, ts)
	second := record("fx:cny_twd", 4.32, ts)
	if first.ContentHash != second.ContentHash {
		t.Fatalf("identical records must hash identically")
	}
	if d := Decide(second, archived(first)); d != Drop {
		t.Fatalf("got %v, want drop", d)
	}
	// Idempotent: deciding again changes nothing.
	if d := Decide(second, archived(first)); d != Drop {
		t.Fatalf("second decide got %v, want drop", d)
	}
}

func TestDecideUpdateOnNewerObservation(t *testing.T) {
	t1 := time.Now()
	old := record("fx:cny_twd", 4.32, t1)
	newer := record("fx:cny_twd", 4.35, t1.Add(time.Minute))
	if d := Decide(newer, archived(old)); d != UpdateLatest {
		t.Fatalf("got %v, want update_latest", d)
	}
}

func TestDecideSameObservationDifferentContent(t *testing.T) {
	// Equal observation times with changed content still promote: the
	// source corrected its value.
	ts := time.Now()
	old := record("fx:cny_twd", 4.32, ts)
	corrected := record("fx:cny_twd", 4.33, ts)
	if d := Decide(corrected, archived(old)); d != UpdateLatest {
		t.Fatalf("got %v, want update_latest", d)
	}
}

func TestDecideLateArrivalAppendsOnly(t *testing.T) {
	t1 := time.Now()
	t3 := t1.Add(2 * time.Minute)
	t2 := t1.Add(time.Minute)

	latest := record("fx:cny_twd", 4.40, t3)
	late := record("fx:cny_twd", 4.35, t2)
	if d := Decide(late, archived(latest)); d != AppendHistory {
		t.Fatalf("got %v, want append_history", d)
	}
}

func TestContentHashIgnoresCrawlTime(t *testing.T) {
	ts := time.Now()
	a := record("fx:cny_twd", 4.32, ts)
	b := record("fx:cny_twd", 4.32, ts)
	b.CrawledAt = b.CrawledAt.Add(time.Hour)
	b.StrategyUsed = "browser"
	b.ContentHash = b.Fingerprint()
	if a.ContentHash != b.ContentHash {
		t.Fatalf("hash must not depend on crawled_at or strategy")
	}
}
