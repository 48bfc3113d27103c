package mosaic

import (
	"context"
	"errors"
	"testing"
)

func TestPixelateBatch(t *testing.T) {
	sizes := []int{12, 20, 33, 8, 41}
	jobs := make([]Job, len(sizes))
	for i, s := range sizes {
		opts := DefaultOptions()
		opts.BlockSize = 4
		jobs[i] = Job{Source: lineBuffer(s, s, s/2, 2), Options: opts}
	}

	results, err := PixelateBatch(context.Background(), jobs, 2)
	if err != nil {
		t.Fatalf("PixelateBatch failed: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	for i, r := range results {
		if r == nil {
			t.Fatalf("result %d missing", i)
		}
		if r.Buffer.Width != sizes[i] {
			t.Errorf("result %d width = %d, want %d (order not preserved)", i, r.Buffer.Width, sizes[i])
		}
		single := Pixelate(jobs[i].Source, jobs[i].Options)
		for j := range single.Buffer.Pix {
			if single.Buffer.Pix[j] != r.Buffer.Pix[j] {
				t.Fatalf("result %d differs from a sequential run", i)
			}
		}
	}
}

func TestPixelateBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{
		{Source: lineBuffer(10, 10, 3, 2), Options: DefaultOptions()},
		{Source: lineBuffer(10, 10, 5, 2), Options: DefaultOptions()},
	}
	results, err := PixelateBatch(ctx, jobs, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	for i, r := range results {
		if r != nil {
			t.Errorf("job %d ran after cancellation", i)
		}
	}
}

func TestPixelateBatch_Empty(t *testing.T) {
	results, err := PixelateBatch(context.Background(), nil, 4)
	if err != nil || len(results) != 0 {
		t.Errorf("got %v, %v", results, err)
	}
}
