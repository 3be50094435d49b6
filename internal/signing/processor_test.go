package signing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/internal/message"
	"TypedSign-Chain/internal/observability/alerting"
	"TypedSign-Chain/pkg/eip712"
)

// scriptedExecutor fails with errs in order, then succeeds.
type scriptedExecutor struct {
	mu    sync.Mutex
	errs  []error
	calls atomic.Int32
}

func (s *scriptedExecutor) Execute(_ context.Context, job *Job) (*Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &Result{Signature: "0x" + job.ID, Signer: "0xsigner", Digest: "0xdigest"}, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (r *recordingDispatcher) Notify(_ context.Context, event alerting.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingDispatcher) snapshot() []alerting.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alerting.Event(nil), r.events...)
}

func (r *recordingDispatcher) waitFor(t *testing.T, n int) []alerting.Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		events := r.snapshot()
		if len(events) >= n {
			return events
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d alerts, got %+v", n, events)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startProcessor(t *testing.T, ctx context.Context, p *Processor) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()
	t.Cleanup(func() { <-done })
}

func TestProcessorSignsSubmittedJobs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exec := newTestExecutor(t)
	store := NewMemoryStore()
	queue := NewMemoryQueue(256)
	service := NewService(store, queue, exec, 3)
	startProcessor(t, ctx, NewProcessor(exec, store, queue, queue, WithWorkerCount(8)))

	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		msg := fmt.Sprintf(`{"from":{"name":"Cow","wallet":"%s"},"to":{"name":"Bob","wallet":"%s"},"contents":"hello %d"}`,
			cowAddress.Hex(), common.HexToAddress("0x02").Hex(), i)
		job, err := service.Submit(ctx, Request{Domain: "ether-mail", Kind: message.KindMail, Key: "cow", Message: json.RawMessage(msg)})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		ids = append(ids, job.ID)
	}

	for _, id := range ids {
		job, err := service.WaitUntilCompleted(ctx, id, 10*time.Millisecond)
		if err != nil {
			t.Fatalf("wait %s: %v", id, err)
		}
		if job.Status != StatusSucceeded || job.Result == nil {
			t.Fatalf("job %s not signed: %+v", id, job)
		}
		sigBytes, err := hexutil.Decode(job.Result.Signature)
		if err != nil {
			t.Fatalf("decode signature: %v", err)
		}
		sig, err := eip712.ParseSignature(sigBytes)
		if err != nil {
			t.Fatalf("parse signature: %v", err)
		}
		signer, err := eip712.RecoverDigest(common.HexToHash(job.Result.Digest), sig)
		if err != nil {
			t.Fatalf("recover: %v", err)
		}
		if signer != cowAddress {
			t.Fatalf("job %s recovered to %s", id, signer.Hex())
		}
	}

	stats, err := service.Stats(ctx, WithDomain("ether-mail"))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 50 || stats.Succeeded != 50 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestProcessorRetriesRetryableFailures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exec := &scriptedExecutor{errs: []error{
		xerrors.New(eip712.CodeSigningFailure, "curve hiccup"),
	}}
	alerts := &recordingDispatcher{}
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue, nil, 3)
	startProcessor(t, ctx, NewProcessor(exec, store, queue, queue, WithAlertDispatcher(alerts)))

	job, err := service.Submit(ctx, Request{ID: "retry-me", Domain: "d", Kind: "k", Key: "cow", Message: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	done, err := service.WaitUntilCompleted(ctx, job.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusSucceeded || done.Attempts != 2 || exec.calls.Load() != 2 {
		t.Fatalf("expected success on second attempt, got %+v (calls %d)", done, exec.calls.Load())
	}
	events := alerts.snapshot()
	if len(events) != 1 || events[0].Metadata["stage"] != "retry" || events[0].JobID != "retry-me" {
		t.Fatalf("unexpected alerts %+v", events)
	}
}

func TestProcessorStopsOnNonRetryableFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exec := &scriptedExecutor{errs: []error{
		xerrors.New(message.CodeInvalidMessage, "bad payload"),
	}}
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue, nil, 3)
	startProcessor(t, ctx, NewProcessor(exec, store, queue, queue))

	job, err := service.Submit(ctx, Request{Domain: "d", Kind: "k", Key: "cow", Message: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	done, err := service.WaitUntilCompleted(ctx, job.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusFailed || !done.Terminal || done.Attempts != 1 || done.ErrorCode != string(message.CodeInvalidMessage) {
		t.Fatalf("expected terminal failure, got %+v", done)
	}
	if exec.calls.Load() != 1 {
		t.Fatalf("non-retryable failure executed %d times", exec.calls.Load())
	}
}

func TestProcessorAlertsWhenRetriesExhausted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	failure := xerrors.New(eip712.CodeSigningFailure, "curve failure")
	exec := &scriptedExecutor{errs: []error{failure, failure}}
	alerts := &recordingDispatcher{}
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue, nil, 2)
	startProcessor(t, ctx, NewProcessor(exec, store, queue, queue, WithAlertDispatcher(alerts), WithWorkerCount(2)))

	job, err := service.Submit(ctx, Request{Domain: "d", Kind: "k", Key: "cow", Message: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	done, err := service.WaitUntilCompleted(ctx, job.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusFailed || done.Attempts != 2 || !done.Finished() {
		t.Fatalf("expected exhausted job, got %+v", done)
	}
	events := alerts.waitFor(t, 2)
	last := events[len(events)-1]
	if last.Code != CodeJobExhausted || last.Metadata["stage"] != "terminal" || last.Metadata["cause_code"] != string(eip712.CodeSigningFailure) {
		t.Fatalf("unexpected final alert %+v", last)
	}
}
