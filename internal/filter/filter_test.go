package filter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"polyhedge/internal/models"
)

type failingRanker struct{ calls int }

func (r *failingRanker) RankMarkets(_ context.Context, _ []models.Market, _, _ string, _ int) ([]string, error) {
	r.calls++
	return nil, errors.New("capability down")
}

// scriptedRanker returns a fixed id list per call, in call order.
type scriptedRanker struct {
	responses [][]string
	calls     int
}

func (r *scriptedRanker) RankMarkets(_ context.Context, _ []models.Market, _, _ string, _ int) ([]string, error) {
	if r.calls >= len(r.responses) {
		return nil, errors.New("unexpected call")
	}
	ids := r.responses[r.calls]
	r.calls++
	return ids, nil
}

func candidateList(n int) []models.Market {
	markets := make([]models.Market, 0, n)
	for i := 0; i < n; i++ {
		markets = append(markets, models.Market{
			ID:        fmt.Sprintf("m%d", i),
			Question:  fmt.Sprintf("question %d", i),
			Liquidity: float64(100 * (i + 1)),
		})
	}
	return markets
}

func TestFilterFallsBackToLiquidityOnRankerFailure(t *testing.T) {
	ranker := &failingRanker{}
	f := New(ranker, nil)

	// 7 candidates, batches of 3: [m0 m1 m2] [m3 m4 m5] [m6], topK 2.
	got := f.FilterInBatches(context.Background(), candidateList(7), "port strike", Options{
		BatchSize:    3,
		TopKPerBatch: 2,
	})

	if ranker.calls != 3 {
		t.Fatalf("ranker calls = %d, want 3", ranker.calls)
	}
	// Liquidity rises with index, so each batch contributes its last two
	// members in descending liquidity. The final batch has only one.
	wantIDs := []string{"m2", "m1", "m5", "m4", "m6"}
	if len(got) != len(wantIDs) {
		t.Fatalf("selected %d markets, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Fatalf("selected[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestFilterConcatenatesInBatchOrder(t *testing.T) {
	ranker := &scriptedRanker{responses: [][]string{
		{"m1"},
		{"m4", "m3"},
	}}
	f := New(ranker, nil)

	got := f.FilterInBatches(context.Background(), candidateList(5), "drought", Options{
		BatchSize:    3,
		TopKPerBatch: 2,
	})

	wantIDs := []string{"m1", "m4", "m3"}
	if len(got) != len(wantIDs) {
		t.Fatalf("selected %d markets, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Fatalf("selected[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestFilterDropsIDsOutsideBatch(t *testing.T) {
	ranker := &scriptedRanker{responses: [][]string{
		{"m0", "bogus", "m9"},
	}}
	f := New(ranker, nil)

	got := f.FilterInBatches(context.Background(), candidateList(3), "anything", Options{
		BatchSize:    10,
		TopKPerBatch: 5,
	})
	if len(got) != 1 || got[0].ID != "m0" {
		t.Fatalf("selected = %+v, want just m0", got)
	}
}

func TestFilterClipsOversizedRankerResponse(t *testing.T) {
	ranker := &scriptedRanker{responses: [][]string{
		{"m2", "m0", "m1", "m3"},
	}}
	f := New(ranker, nil)

	got := f.FilterInBatches(context.Background(), candidateList(4), "anything", Options{
		BatchSize:    10,
		TopKPerBatch: 2,
	})
	wantIDs := []string{"m2", "m0"}
	if len(got) != len(wantIDs) {
		t.Fatalf("selected %d markets, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Fatalf("selected[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestFilterEmptyInput(t *testing.T) {
	f := New(&failingRanker{}, nil)
	if got := f.FilterInBatches(context.Background(), nil, "anything", Options{}); len(got) != 0 {
		t.Fatalf("selected = %+v, want empty", got)
	}
}
