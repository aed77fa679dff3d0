package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/puxianlab/pxlex/engine/domain"
	"github.com/puxianlab/pxlex/engine/semantic"
	"github.com/puxianlab/pxlex/pkg/fn"
)

// --- Fakes ---

type fakeEmbedder struct {
	mu    sync.Mutex
	dim   int
	fails map[string]error // input text -> error
	once  map[string]int   // remaining failures per text
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.once[text]; ok && n > 0 {
		f.once[text] = n - 1
		return nil, domain.NewServiceError(domain.ServiceEmbedding, 429, errors.New("rate limited"))
	}
	if err, ok := f.fails[text]; ok {
		return nil, err
	}
	vec := make([]float32, f.dim)
	for i, r := range []rune(text) {
		vec[i%f.dim] += float32(r % 13)
	}
	return vec, nil
}

type fakeStore struct {
	mu          sync.Mutex
	resetCalls  int
	resetErr    error
	upsertErr   error
	upserts     []semantic.VectorRecord
	earlyUpsert bool
}

func (f *fakeStore) ResetCollection(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resetCalls++
	f.upserts = nil
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, records []semantic.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetCalls == 0 {
		f.earlyUpsert = true
	}
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, records...)
	return nil
}

func (f *fakeStore) words() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.upserts))
	for i, r := range f.upserts {
		out[i] = r.Entry.Word
	}
	return out
}

func testRows() []domain.RawRow {
	return []domain.RawRow{
		{Word: "阿肥", GlossA: "胖子", IPA: "ap1 pui13", PX: "a1 bui2", Line: 1},
		{Word: "阿肥土", GlossA: "大胖子，", GlossB: "含戏谑意", IPA: "ap1 pui21 thɔu453", PX: "a1 bui2 tou3", Line: 2},
		{Word: "白肥", GlossA: "又白又胖", IPA: "pa21 ui13", PX: "ba2 bui2", Line: 3},
	}
}

func quickRetry() fn.RetryOpts {
	return fn.RetryOpts{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		RetryIf:     domain.IsRetryable,
	}
}

// --- Tests ---

func TestRunIndexesAllRows(t *testing.T) {
	store := &fakeStore{}
	runner := New(&fakeEmbedder{dim: 4}, store, Options{Workers: 2, Retry: quickRetry()}, nil)

	report, err := runner.Run(context.Background(), testRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Total != 3 || report.Indexed != 3 || len(report.Errors) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if store.earlyUpsert {
		t.Fatal("upsert issued before collection reset completed")
	}
	if store.resetCalls != 1 || len(store.upserts) != 3 {
		t.Fatalf("resets=%d upserts=%d", store.resetCalls, len(store.upserts))
	}
}

func TestRunIDsStableAcrossRuns(t *testing.T) {
	ids := func() map[string]string {
		store := &fakeStore{}
		runner := New(&fakeEmbedder{dim: 4}, store, Options{Workers: 3, Retry: quickRetry()}, nil)
		if _, err := runner.Run(context.Background(), testRows()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m := make(map[string]string)
		for _, r := range store.upserts {
			m[r.Entry.Word] = r.ID
		}
		return m
	}

	first, second := ids(), ids()
	for word, id := range first {
		if second[word] != id {
			t.Fatalf("ID for %q changed between runs: %s vs %s", word, id, second[word])
		}
	}

	// Reordered rows keep the same IDs: identity is content-derived.
	rows := testRows()
	rows[0], rows[2] = rows[2], rows[0]
	store := &fakeStore{}
	runner := New(&fakeEmbedder{dim: 4}, store, Options{Workers: 1, Retry: quickRetry()}, nil)
	if _, err := runner.Run(context.Background(), rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range store.upserts {
		if first[r.Entry.Word] != r.ID {
			t.Fatalf("ID for %q depends on row order", r.Entry.Word)
		}
	}
}

func TestRunDuplicateHeadwordsGetDistinctIDs(t *testing.T) {
	rows := []domain.RawRow{
		{Word: "阿肥", GlossA: "胖子", Line: 1},
		{Word: "阿肥", GlossA: "称呼胖的人", Line: 2},
	}
	store := &fakeStore{}
	runner := New(&fakeEmbedder{dim: 4}, store, Options{Workers: 1, Retry: quickRetry()}, nil)

	report, err := runner.Run(context.Background(), rows)
	if err != nil || report.Indexed != 2 {
		t.Fatalf("report = %+v, err = %v", report, err)
	}
	if store.upserts[0].ID == store.upserts[1].ID {
		t.Fatal("duplicate headwords must get distinct IDs")
	}
}

func TestRunCollectsRowErrors(t *testing.T) {
	rows := append(testRows(), domain.RawRow{GlossA: "没有词头", Line: 4})
	store := &fakeStore{}
	runner := New(&fakeEmbedder{dim: 4}, store, Options{Workers: 2, Retry: quickRetry()}, nil)

	report, err := runner.Run(context.Background(), rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed != 3 || len(report.Errors) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Errors[0].Line != 4 || !errors.Is(report.Errors[0], domain.ErrMissingHeadword) {
		t.Fatalf("error = %v", report.Errors[0])
	}
}

func TestRunEmbedFailureProducesNoPartialUpsert(t *testing.T) {
	embed := &fakeEmbedder{
		dim: 4,
		fails: map[string]error{
			"阿肥土 大胖子，含戏谑意": domain.NewServiceError(domain.ServiceEmbedding, 401, errors.New("auth")),
		},
	}
	store := &fakeStore{}
	runner := New(embed, store, Options{Workers: 2, Retry: quickRetry()}, nil)

	report, err := runner.Run(context.Background(), testRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed != 2 || len(report.Errors) != 1 {
		t.Fatalf("report = %+v", report)
	}
	var se *domain.ServiceError
	if !errors.As(report.Errors[0], &se) || se.Status != 401 {
		t.Fatalf("error = %v", report.Errors[0])
	}
	for _, w := range store.words() {
		if w == "阿肥土" {
			t.Fatal("failed record must not be upserted")
		}
	}
}

func TestRunRetriesRetryableEmbedErrors(t *testing.T) {
	embed := &fakeEmbedder{
		dim:  4,
		once: map[string]int{"阿肥 胖子": 2}, // fails twice, then succeeds
	}
	store := &fakeStore{}
	runner := New(embed, store, Options{Workers: 1, Retry: quickRetry()}, nil)

	report, err := runner.Run(context.Background(), testRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed != 3 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunRowLimit(t *testing.T) {
	store := &fakeStore{}
	runner := New(&fakeEmbedder{dim: 4}, store, Options{Workers: 1, RowLimit: 2, Retry: quickRetry()}, nil)

	report, err := runner.Run(context.Background(), testRows())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Total != 2 || report.Indexed != 2 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunStoreOutageIsFatal(t *testing.T) {
	store := &fakeStore{
		upsertErr: fmt.Errorf("semantic: upsert 1 points: %w: %w",
			domain.ErrStoreUnavailable, status.Error(codes.Unavailable, "connection refused")),
	}
	runner := New(&fakeEmbedder{dim: 4}, store, Options{Workers: 2, Retry: quickRetry()}, nil)

	report, err := runner.Run(context.Background(), testRows())
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("a dead store must fail the run, got err = %v, report = %+v", err, report)
	}
	if report.Indexed != 0 {
		t.Fatalf("report claims %d rows indexed against a dead store", report.Indexed)
	}
}

func TestRunResetFailureIsFatal(t *testing.T) {
	store := &fakeStore{resetErr: domain.ErrCollectionLifecycle}
	runner := New(&fakeEmbedder{dim: 4}, store, Options{Workers: 1, Retry: quickRetry()}, nil)

	_, err := runner.Run(context.Background(), testRows())
	if !errors.Is(err, domain.ErrCollectionLifecycle) {
		t.Fatalf("expected lifecycle error, got %v", err)
	}
	if len(store.upserts) != 0 {
		t.Fatal("no upserts may happen after a failed reset")
	}
}
