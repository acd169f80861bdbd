package store

import (
	"context"
	"fmt"
	"testing"

	"videoshelf/internal/videofmt"
)

// seedLibrary loads a small fixed library covering the filter axes.
func seedLibrary(t *testing.T, s *Store) {
	t.Helper()
	recs := []VideoRecord{
		makeRecord("/videos/Holiday Trip.mp4", 50, 30, 640, 360, videofmt.FormatMP4),
		makeRecord("/videos/birthday.mkv", 100, 90, 1280, 720, videofmt.FormatMKV),
		makeRecord("/videos/Concert.avi", 500, 600, 1920, 1080, videofmt.FormatAVI),
		makeRecord("/videos/trip-notes.mov", 1000, 45, 3840, 2160, videofmt.FormatMOV),
		makeRecord("/videos/old-trip.mp4", 2000, 120, 720, 480, videofmt.FormatMP4),
	}
	if err := s.UpsertBatch(context.Background(), recs); err != nil {
		t.Fatal(err)
	}
}

func names(res *QueryResult) []string {
	out := make([]string, len(res.Items))
	for i := range res.Items {
		out[i] = res.Items[i].FileName
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }

func TestQueryFilters(t *testing.T) {
	s := openTestStore(t)
	seedLibrary(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{
			name: "all sorted by name",
			opts: QueryOptions{Sort: SortByName},
			want: []string{"birthday.mkv", "Concert.avi", "Holiday Trip.mp4", "old-trip.mp4", "trip-notes.mov"},
		},
		{
			name: "substring is case-insensitive",
			opts: QueryOptions{NameContains: "TRIP", Sort: SortByName},
			want: []string{"Holiday Trip.mp4", "old-trip.mp4", "trip-notes.mov"},
		},
		{
			name: "size bounds are inclusive",
			opts: QueryOptions{MinSize: i64(100), MaxSize: i64(1000), Sort: SortBySize},
			want: []string{"birthday.mkv", "Concert.avi", "trip-notes.mov"},
		},
		{
			name: "duration bounds",
			opts: QueryOptions{MinDuration: f64(45), MaxDuration: f64(120), Sort: SortByDuration},
			want: []string{"trip-notes.mov", "birthday.mkv", "old-trip.mp4"},
		},
		{
			name: "format allow-list",
			opts: QueryOptions{Formats: []videofmt.Format{videofmt.FormatMP4, videofmt.FormatAVI}, Sort: SortBySize},
			want: []string{"Holiday Trip.mp4", "Concert.avi", "old-trip.mp4"},
		},
		{
			name: "combined filters",
			opts: QueryOptions{NameContains: "trip", MinSize: i64(1000), Sort: SortByName},
			want: []string{"old-trip.mp4", "trip-notes.mov"},
		},
		{
			name: "sort by resolution descending",
			opts: QueryOptions{Sort: SortByResolution, Order: SortDesc},
			want: []string{"trip-notes.mov", "Concert.avi", "birthday.mkv", "old-trip.mp4", "Holiday Trip.mp4"},
		},
		{
			name: "no match",
			opts: QueryOptions{NameContains: "nothing-here"},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Query(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if got := names(res); !equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if res.Total != len(tt.want) {
				t.Errorf("Total = %d, want %d", res.Total, len(tt.want))
			}
		})
	}
}

func TestQueryExcludesTombstoned(t *testing.T) {
	s := openTestStore(t)
	seedLibrary(t, s)
	ctx := context.Background()

	rec := makeRecord("/videos/Concert.avi", 0, 0, 0, 0, videofmt.FormatAVI)
	if err := s.Tombstone(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}

	res, err := s.Query(ctx, QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 4 {
		t.Errorf("Total = %d, want 4 with tombstoned excluded", res.Total)
	}
	for _, item := range res.Items {
		if item.FileName == "Concert.avi" {
			t.Error("tombstoned record returned by default query")
		}
	}

	res, err = s.Query(ctx, QueryOptions{IncludeTombstoned: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 5 {
		t.Errorf("Total = %d, want 5 with tombstoned included", res.Total)
	}
}

func TestQueryPagination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var recs []VideoRecord
	for i := 0; i < 12; i++ {
		path := fmt.Sprintf("/videos/clip-%02d.mp4", i)
		recs = append(recs, makeRecord(path, int64(i), 1, 1, 1, videofmt.FormatMP4))
	}
	if err := s.UpsertBatch(ctx, recs); err != nil {
		t.Fatal(err)
	}

	page, err := s.Query(ctx, QueryOptions{Sort: SortBySize, Limit: 5, Offset: 10})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 12 {
		t.Errorf("Total = %d, want 12 regardless of page", page.Total)
	}
	if got := names(page); !equal(got, []string{"clip-10.mp4", "clip-11.mp4"}) {
		t.Errorf("last page = %v", got)
	}
	if page.Limit != 5 || page.Offset != 10 {
		t.Errorf("echoed paging = limit %d offset %d", page.Limit, page.Offset)
	}

	// Offset past the end is an empty page, not an error.
	empty, err := s.Query(ctx, QueryOptions{Offset: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Items) != 0 || empty.Total != 12 {
		t.Errorf("past-the-end page: %d items, total %d", len(empty.Items), empty.Total)
	}
}

func TestQueryLimitClamping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := makeRecord("/v/x.mp4", 1, 1, 1, 1, videofmt.FormatMP4)
	if err := s.Upsert(ctx, &rec); err != nil {
		t.Fatal(err)
	}

	res, err := s.Query(ctx, QueryOptions{Limit: 10000})
	if err != nil {
		t.Fatal(err)
	}
	if res.Limit != maxLimit {
		t.Errorf("Limit = %d, want clamped to %d", res.Limit, maxLimit)
	}

	res, err = s.Query(ctx, QueryOptions{Limit: -3, Offset: -7})
	if err != nil {
		t.Fatal(err)
	}
	if res.Limit != defaultLimit || res.Offset != 0 {
		t.Errorf("negative paging not normalized: limit %d offset %d", res.Limit, res.Offset)
	}
}
