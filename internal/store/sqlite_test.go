package store_test

import (
	"testing"
	"time"

	"hindsight/internal/model"
	"hindsight/internal/testutil"
)

func TestAnnotations(t *testing.T) {
	t.Run("round trip with watermark", func(t *testing.T) {
		clock := testutil.NewManualClock()
		s := testutil.NewTestStore(t, clock)

		a, err := s.AddAnnotation("hello")
		if err != nil {
			t.Fatalf("AddAnnotation() error = %v", err)
		}

		got, err := s.Annotations(0)
		if err != nil {
			t.Fatalf("Annotations() error = %v", err)
		}
		if len(got) != 1 || got[0].Text != "hello" {
			t.Fatalf("Annotations(0) = %+v, want one row with text %q", got, "hello")
		}

		// The watermark is exclusive: nothing at or before it comes back.
		got, err = s.Annotations(a.Timestamp)
		if err != nil {
			t.Fatalf("Annotations() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Annotations(after=row ts) = %d rows, want 0", len(got))
		}
	})

	t.Run("delete removes the row", func(t *testing.T) {
		clock := testutil.NewManualClock()
		s := testutil.NewTestStore(t, clock)

		a, _ := s.AddAnnotation("to delete")
		if err := s.DeleteAnnotation(a.ID); err != nil {
			t.Fatalf("DeleteAnnotation() error = %v", err)
		}

		got, _ := s.Annotations(0)
		if len(got) != 0 {
			t.Errorf("Annotations(0) after delete = %d rows, want 0", len(got))
		}
	})
}

func TestLocations(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	if last, err := s.LastLocation(); err != nil || last != nil {
		t.Fatalf("LastLocation() on empty store = %v, %v; want nil, nil", last, err)
	}

	s.AddLocation(52.52, 13.405)
	clock.Advance(time.Second)
	s.AddLocation(48.86, 2.35)

	last, err := s.LastLocation()
	if err != nil {
		t.Fatalf("LastLocation() error = %v", err)
	}
	if last.Latitude != 48.86 {
		t.Errorf("LastLocation().Latitude = %v, want 48.86", last.Latitude)
	}

	all, _ := s.Locations(0)
	if len(all) != 2 {
		t.Errorf("Locations(0) = %d rows, want 2", len(all))
	}
}

func makeContent(id int64, ranking float64) *model.ContentItem {
	return &model.ContentItem{
		ID:                    id,
		ContentGeneratorID:    1,
		Title:                 "title",
		URL:                   "https://example.com",
		PublishedDate:         1700000000000,
		RankingScore:          ranking,
		LastModifiedTimestamp: 1,
	}
}

func TestMaxContentID(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	id, err := s.MaxContentID()
	if err != nil {
		t.Fatalf("MaxContentID() error = %v", err)
	}
	if id != -1 {
		t.Errorf("MaxContentID() on empty store = %d, want -1", id)
	}

	if err := s.AddContentBatch([]*model.ContentItem{makeContent(5, 0.5)}); err != nil {
		t.Fatalf("AddContentBatch() error = %v", err)
	}

	id, _ = s.MaxContentID()
	if id != 5 {
		t.Errorf("MaxContentID() = %d, want 5", id)
	}
}

func TestAddContentBatchIsAtomic(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	// A duplicated primary key halfway through must roll back the whole batch.
	batch := []*model.ContentItem{
		makeContent(1, 0.1),
		makeContent(2, 0.2),
		makeContent(2, 0.3),
		makeContent(4, 0.4),
	}
	if err := s.AddContentBatch(batch); err == nil {
		t.Fatal("AddContentBatch() with duplicate id succeeded, want error")
	}

	got, err := s.Content(0, false)
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Content(0) after failed batch = %d rows, want 0", len(got))
	}
}

func TestContentFeedOrder(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	s.AddContentBatch([]*model.ContentItem{
		makeContent(1, 0.2),
		makeContent(2, 0.9),
		makeContent(3, 0.5),
	})

	got, err := s.Content(0, false)
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	wantOrder := []int64{2, 3, 1}
	for i, w := range wantOrder {
		if got[i].ID != w {
			t.Errorf("Content()[%d].ID = %d, want %d (descending ranking order)", i, got[i].ID, w)
		}
	}
}

func TestMarkViewedIdempotent(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	s.AddContentBatch([]*model.ContentItem{makeContent(1, 0.5)})

	clock.Advance(time.Minute)
	if err := s.MarkViewed([]int64{1}); err != nil {
		t.Fatalf("MarkViewed() error = %v", err)
	}

	first, _ := s.Content(0, false)
	firstTS := first[0].LastModifiedTimestamp
	if !first[0].Viewed {
		t.Fatal("content not marked viewed")
	}

	// Second call is a no-op: viewed stays true and the timestamp is untouched.
	clock.Advance(time.Minute)
	if err := s.MarkViewed([]int64{1}); err != nil {
		t.Fatalf("MarkViewed() second call error = %v", err)
	}

	second, _ := s.Content(0, false)
	if !second[0].Viewed {
		t.Error("viewed flag was reset")
	}
	if second[0].LastModifiedTimestamp != firstTS {
		t.Errorf("second MarkViewed bumped last_modified_timestamp %d -> %d",
			firstTS, second[0].LastModifiedTimestamp)
	}
}

func TestMarkClickedIdempotent(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	s.AddContentBatch([]*model.ContentItem{makeContent(7, 0.5)})

	clock.Advance(time.Minute)
	s.MarkClicked([]int64{7})
	first, _ := s.Content(0, false)
	firstTS := first[0].LastModifiedTimestamp

	clock.Advance(time.Minute)
	s.MarkClicked([]int64{7})
	second, _ := s.Content(0, false)
	if second[0].LastModifiedTimestamp != firstTS {
		t.Errorf("second MarkClicked bumped last_modified_timestamp %d -> %d",
			firstTS, second[0].LastModifiedTimestamp)
	}
}

func TestNonViewedOnlyFilter(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	s.AddContentBatch([]*model.ContentItem{makeContent(1, 0.9), makeContent(2, 0.1)})
	s.MarkViewed([]int64{1})

	got, _ := s.Content(0, true)
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("Content(nonViewedOnly) = %+v, want only id 2", got)
	}
}

func TestUpdateScoreAndRankings(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	s.AddContentBatch([]*model.ContentItem{makeContent(1, 0.1), makeContent(2, 0.2)})

	clock.Advance(time.Minute)
	if err := s.UpdateScore(1, 4); err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}

	if err := s.UpdateRankingScores([]*model.ContentRanking{
		{ID: 1, RankingScore: 0.7},
		{ID: 2, RankingScore: 0.3},
	}); err != nil {
		t.Fatalf("UpdateRankingScores() error = %v", err)
	}

	got, _ := s.Content(0, false)
	if got[0].ID != 1 || got[0].RankingScore != 0.7 {
		t.Errorf("top of feed = id %d score %v, want id 1 score 0.7", got[0].ID, got[0].RankingScore)
	}
	if got[0].Score == nil || *got[0].Score != 4 {
		t.Errorf("Score = %v, want 4", got[0].Score)
	}

	// Score and ranking mutations count as local modifications.
	dirty, _ := s.DirtyContent(1)
	if len(dirty) != 2 {
		t.Errorf("DirtyContent(1) = %d rows, want 2", len(dirty))
	}
}

func TestDirtyContentProjection(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	s.AddContentBatch([]*model.ContentItem{makeContent(9, 0.5)})
	clock.Advance(time.Hour)
	s.MarkViewed([]int64{9})

	dirty, err := s.DirtyContent(1)
	if err != nil {
		t.Fatalf("DirtyContent() error = %v", err)
	}
	if len(dirty) != 1 {
		t.Fatalf("DirtyContent() = %d rows, want 1", len(dirty))
	}
	if dirty[0].ID != 9 || !dirty[0].Viewed || dirty[0].Score != 0 {
		t.Errorf("DirtyContent()[0] = %+v, want id 9, viewed, score 0", dirty[0])
	}
}

func TestWipe(t *testing.T) {
	clock := testutil.NewManualClock()
	s := testutil.NewTestStore(t, clock)

	s.AddAnnotation("note")
	s.AddLocation(1, 2)
	s.AddContentBatch([]*model.ContentItem{makeContent(1, 0.5)})

	if err := s.Wipe(); err != nil {
		t.Fatalf("Wipe() error = %v", err)
	}

	if a, _ := s.Annotations(0); len(a) != 0 {
		t.Error("annotations survived wipe")
	}
	if l, _ := s.Locations(0); len(l) != 0 {
		t.Error("locations survived wipe")
	}
	if id, _ := s.MaxContentID(); id != -1 {
		t.Errorf("MaxContentID() after wipe = %d, want -1", id)
	}
}
