package audit

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestFillDefaults(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	r := fill(Record{Action: "update-vape-pricing"}, now)
	if r.ID == "" {
		t.Fatal("expected generated id")
	}
	if !r.At.Equal(now) || r.At.Location() != time.UTC {
		t.Fatalf("unexpected timestamp %v", r.At)
	}
	if r.ProductIDs == nil {
		t.Fatal("product ids should encode as an empty array")
	}

	kept := fill(Record{ID: "fixed", At: now}, time.Now())
	if kept.ID != "fixed" || !kept.At.Equal(now) {
		t.Fatalf("fill overwrote caller values: %+v", kept)
	}
}

func TestRecordBSONFieldNames(t *testing.T) {
	b, err := bson.Marshal(fill(Record{Action: "product.update", ProductIDs: []int64{3}, DryRun: true}, time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	var doc bson.M
	if err := bson.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"_id", "action", "product_ids", "dry_run", "outcome", "at"} {
		if _, ok := doc[k]; !ok {
			t.Fatalf("missing field %q in %v", k, doc)
		}
	}
	if _, ok := doc["request_id"]; ok {
		t.Fatal("empty request id should be omitted")
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	if err := r.Save(context.Background(), Record{}); err != nil {
		t.Fatal(err)
	}
	recs, err := r.Recent(context.Background(), 10)
	if err != nil || recs == nil || len(recs) != 0 {
		t.Fatalf("expected an empty non-nil list, got %v %v", recs, err)
	}
}
