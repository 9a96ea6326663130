package deposit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marqetfi/tradegate/provider"
)

type fakeSwapVendor struct {
	mu          sync.Mutex
	quotes      int
	statusCalls int
	// statusStates is consumed one per Status call; the last entry repeats.
	statusStates []string
	statusErr    error
}

func (f *fakeSwapVendor) Name() string                     { return "lifi" }
func (f *fakeSwapVendor) Initialize(context.Context) error { return nil }

func (f *fakeSwapVendor) Quote(_ context.Context, req provider.SwapRequest) (*provider.SwapQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes++
	return &provider.SwapQuote{
		FromToken:  req.FromToken,
		ToToken:    req.ToToken,
		FromAmount: req.Amount,
		ToAmount:   "990",
		QuoteID:    fmt.Sprintf("q-%d", f.quotes),
		TxData:     "0xcalldata",
	}, nil
}

func (f *fakeSwapVendor) Status(context.Context, string) (*provider.SwapStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	i := f.statusCalls
	f.statusCalls++
	if i >= len(f.statusStates) {
		i = len(f.statusStates) - 1
	}
	return &provider.SwapStatus{State: f.statusStates[i], TxHash: "0xhash"}, nil
}

func (f *fakeSwapVendor) Chains(context.Context) ([]string, error) {
	return []string{"base", "arbitrum"}, nil
}

type fakeSwapProviders struct {
	vendor *fakeSwapVendor
}

func (f *fakeSwapProviders) Swap(context.Context, string) (provider.SwapProvider, error) {
	return f.vendor, nil
}

type fakeSigner struct {
	calls atomic.Int64
	err   error
}

func (f *fakeSigner) SignTransaction(_ context.Context, _ int64, txData string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "signed:" + txData, nil
}

func validSwapRequest() provider.SwapRequest {
	return provider.SwapRequest{
		FromToken:   "USDT",
		ToToken:     "USDC",
		FromChain:   "base",
		ToChain:     "base",
		Amount:      "1000",
		FromAddress: "0xabc",
	}
}

func TestQuoteValidation(t *testing.T) {
	svc := NewService(&fakeSwapProviders{vendor: &fakeSwapVendor{}}, &fakeSigner{}, NewQueue(time.Millisecond, time.Second))

	for name, mutate := range map[string]func(*provider.SwapRequest){
		"missing from token":   func(r *provider.SwapRequest) { r.FromToken = "" },
		"missing to token":     func(r *provider.SwapRequest) { r.ToToken = "" },
		"missing amount":       func(r *provider.SwapRequest) { r.Amount = "" },
		"missing from address": func(r *provider.SwapRequest) { r.FromAddress = "" },
	} {
		t.Run(name, func(t *testing.T) {
			req := validSwapRequest()
			mutate(&req)
			_, err := svc.Quote(context.Background(), "", req)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestStartConversionRequiresWallet(t *testing.T) {
	svc := NewService(&fakeSwapProviders{vendor: &fakeSwapVendor{}}, &fakeSigner{}, NewQueue(time.Millisecond, time.Second))

	_, err := svc.StartConversion(context.Background(), "", 0, validSwapRequest())
	require.ErrorIs(t, err, ErrValidation)
}

func TestConversionCompletesViaWorker(t *testing.T) {
	vendor := &fakeSwapVendor{statusStates: []string{"PENDING", "DONE"}}
	signer := &fakeSigner{}
	q := NewQueue(time.Millisecond, 10*time.Millisecond)
	svc := NewService(&fakeSwapProviders{vendor: vendor}, signer, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go RunWorker(ctx, &wg, q, svc)

	c, err := svc.StartConversion(ctx, "", 7, validSwapRequest())
	require.NoError(t, err)
	require.Equal(t, StatePending, c.State)

	require.Eventually(t, func() bool {
		got, err := svc.Get(c.ID)
		return err == nil && got.State == StateCompleted
	}, 5*time.Second, 5*time.Millisecond)

	got, err := svc.Get(c.ID)
	require.NoError(t, err)
	require.Equal(t, "0xhash", got.TxHash)
	// Signed exactly once; the pending poll must not re-sign.
	require.EqualValues(t, 1, signer.calls.Load())

	q.ShutDown()
	wg.Wait()
}

func TestConversionVendorFailureIsTerminal(t *testing.T) {
	vendor := &fakeSwapVendor{statusStates: []string{"FAILED"}}
	q := NewQueue(time.Millisecond, 10*time.Millisecond)
	svc := NewService(&fakeSwapProviders{vendor: vendor}, &fakeSigner{}, q)

	c, err := svc.StartConversion(context.Background(), "", 7, validSwapRequest())
	require.NoError(t, err)

	require.NoError(t, svc.process(context.Background(), c.ID))

	got, err := svc.Get(c.ID)
	require.NoError(t, err)
	require.Equal(t, StateFailed, got.State)

	// Terminal conversions are left alone on reprocessing.
	require.NoError(t, svc.process(context.Background(), c.ID))
}

func TestWorkerExhaustsRetriesAndMarksFailed(t *testing.T) {
	vendor := &fakeSwapVendor{statusErr: errors.New("vendor exploded")}
	q := NewQueue(time.Millisecond, 2*time.Millisecond)
	svc := NewService(&fakeSwapProviders{vendor: vendor}, &fakeSigner{}, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go RunWorker(ctx, &wg, q, svc)

	c, err := svc.StartConversion(ctx, "", 7, validSwapRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svc.Get(c.ID)
		return err == nil && got.State == StateFailed
	}, 5*time.Second, 5*time.Millisecond)

	got, err := svc.Get(c.ID)
	require.NoError(t, err)
	require.Contains(t, got.LastErr, "vendor exploded")

	q.ShutDown()
	wg.Wait()
}

func TestGetUnknownConversion(t *testing.T) {
	svc := NewService(&fakeSwapProviders{vendor: &fakeSwapVendor{}}, &fakeSigner{}, NewQueue(time.Millisecond, time.Second))

	_, err := svc.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
}
