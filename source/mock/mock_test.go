package mock

import (
	"context"
	"testing"

	"github.com/fallpaper-daemon/fallpaper/source"
)

func items(n int) []source.Item {
	out := make([]source.Item, n)
	for i := range out {
		out[i] = source.Item{DownloadURL: "https://example.test/img.jpg"}
	}
	return out
}

func drain(t *testing.T, seq source.BatchSeq) int {
	t.Helper()
	ctx := context.Background()
	total := 0
	for {
		batch, ok, err := seq.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return total
		}
		total += len(batch.Items)
	}
}

func TestFetchBatchesPaginatesAndTerminates(t *testing.T) {
	a := New(items(250))
	seq, err := a.FetchBatches(context.Background(), `{"page_size":100}`, 0)
	if err != nil {
		t.Fatalf("FetchBatches: %v", err)
	}
	if got := drain(t, seq); got != 250 {
		t.Fatalf("expected 250 items total, got %d", got)
	}
}

func TestFetchBatchesRespectsLookupLimit(t *testing.T) {
	a := New(items(250))
	seq, err := a.FetchBatches(context.Background(), "", 50)
	if err != nil {
		t.Fatalf("FetchBatches: %v", err)
	}
	if got := drain(t, seq); got != 50 {
		t.Fatalf("expected limit to cap at 50, got %d", got)
	}
}

func TestNextAfterDoneReturnsFalse(t *testing.T) {
	a := New(items(1))
	seq, _ := a.FetchBatches(context.Background(), "", 0)
	if _, ok, _ := seq.Next(context.Background()); !ok {
		t.Fatal("expected first Next to return a batch")
	}
	if _, ok, _ := seq.Next(context.Background()); ok {
		t.Fatal("expected second Next to report done")
	}
	if _, ok, _ := seq.Next(context.Background()); ok {
		t.Fatal("expected calling Next again after done to stay false")
	}
}

func TestNextCancelledContextStopsPromptly(t *testing.T) {
	a := New(items(10))
	seq, _ := a.FetchBatches(context.Background(), "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok, err := seq.Next(ctx); ok || err == nil {
		t.Fatalf("expected cancelled context to end the sequence immediately, got ok=%v err=%v", ok, err)
	}
}

func TestValidateParamsRejectsNegativePageSize(t *testing.T) {
	a := New(nil)
	if err := a.ValidateParams(`{"page_size":-1}`); err == nil {
		t.Fatal("expected validation error for negative page_size")
	}
}

func TestFailingAdapterAlwaysErrors(t *testing.T) {
	a := &FailingAdapter{}
	seq, err := a.FetchBatches(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("FetchBatches: %v", err)
	}
	if _, ok, err := seq.Next(context.Background()); ok || err == nil {
		t.Fatal("expected failing adapter to error on first Next")
	}
}
