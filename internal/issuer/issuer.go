// Package issuer queues outbound SMP requests and tracks how many are
// outstanding, so the sweep controller knows when a phase has quiesced.
// It is oblivious to payload: callers supply a Sender that performs the
// actual MAD encode/transport, and the issuer only counts round-trips.
package issuer

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/osmcore/osmcore/pkg/log"
)

// Disposition tells the issuer what to do with a response once it
// arrives; the issuer itself never inspects payload, it only routes the
// disposition back to the caller-supplied handler.
type Disposition int

const (
	// DispositionDiscard drops the response once the transaction count
	// is decremented; used for fire-and-forget SubnSets.
	DispositionDiscard Disposition = iota
	// DispositionDeliver invokes the context's callback with the result.
	DispositionDeliver
)

// Result is what a completed (or timed-out) SMP request yields.
type Result struct {
	AttrID   uint32
	AttrMod  uint32
	DRPath   []int
	Context  interface{}
	Err      error
	TimedOut bool
}

// Signal is posted to the sweep controller as outstanding transactions
// drain to zero.
type Signal int

const (
	SignalNone Signal = iota
	SignalNoPendingTransactions
)

// Sender performs the actual wire send for one SMP request. It must not
// block past ctx's deadline; it returns (accepted, err) where accepted
// is false if the request was never queued (e.g. resource exhaustion).
type Sender func(ctx context.Context, drPath []int, attrID, attrMod uint32) (accepted bool, err error)

// ResponseHandler is invoked once per completed Result when its
// disposition is DispositionDeliver.
type ResponseHandler func(Result)

// Issuer queues SMP requests through a Sender and tracks outstanding
// count. The zero value is not usable; construct with New.
type Issuer struct {
	send    Sender
	handler ResponseHandler
	limiter *rate.Limiter

	outstanding int64
}

// New constructs an Issuer. maxInFlightPerSecond bounds admission the
// way OpenSM's max_wire_smps throttle does (0 disables the limiter).
func New(send Sender, handler ResponseHandler, maxInFlightPerSecond int) *Issuer {
	var limiter *rate.Limiter
	if maxInFlightPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxInFlightPerSecond), maxInFlightPerSecond)
	}
	return &Issuer{send: send, handler: handler, limiter: limiter}
}

// Outstanding returns the current outstanding-transaction count.
func (i *Issuer) Outstanding() int64 {
	return atomic.LoadInt64(&i.outstanding)
}

// Request queues one SMP request. It returns an error only if admission
// was refused (rate-limited or the Sender rejected it outright); a
// successfully queued request's eventual result arrives via Complete,
// not via this call's return value.
func (i *Issuer) Request(ctx context.Context, drPath []int, attrID, attrMod uint32, disposition Disposition, reqCtx interface{}) error {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	atomic.AddInt64(&i.outstanding, 1)
	accepted, err := i.send(ctx, drPath, attrID, attrMod)
	if !accepted || err != nil {
		i.complete(Result{AttrID: attrID, AttrMod: attrMod, DRPath: drPath, Context: reqCtx, Err: err}, disposition)
		return err
	}
	return nil
}

// Complete is called by the transport adapter when a response (or
// timeout) for a previously accepted Request arrives.
func (i *Issuer) Complete(res Result) Signal {
	return i.complete(res, DispositionDeliver)
}

func (i *Issuer) complete(res Result, disposition Disposition) Signal {
	remaining := atomic.AddInt64(&i.outstanding, -1)
	if remaining < 0 {
		log.Logger.Warnw("issuer outstanding count went negative, clamping", "attrID", res.AttrID)
		atomic.StoreInt64(&i.outstanding, 0)
		remaining = 0
	}

	if disposition == DispositionDeliver && i.handler != nil {
		i.handler(res)
	}

	if remaining == 0 {
		return SignalNoPendingTransactions
	}
	return SignalNone
}

// DoneOrPending reports DONE if nothing is outstanding and
// DONE_PENDING otherwise, for a phase that issued zero-or-more
// requests synchronously.
type DoneOrPending int

const (
	Done DoneOrPending = iota
	DonePending
)

func (i *Issuer) DoneOrPending() DoneOrPending {
	if i.Outstanding() == 0 {
		return Done
	}
	return DonePending
}
