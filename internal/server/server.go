// Package server implements the sealed-core state machine driving
// init -> handle_call* -> terminate, gating rate-limited calls
// synchronously and batching everything else for a single bulk lookup
// at termination.
package server

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/privatecds/sealedcore/internal/cdstypes"
	"github.com/privatecds/sealedcore/internal/lookup"
	"github.com/privatecds/sealedcore/internal/metrics"
	"github.com/privatecds/sealedcore/internal/phonehash"
	"github.com/privatecds/sealedcore/internal/ratelimitmap"
	"github.com/privatecds/sealedcore/internal/reqcodec"
	"github.com/privatecds/sealedcore/internal/secret"
)

var tracer = otel.Tracer("github.com/privatecds/sealedcore/internal/server")

// Caller is the transport's parked-caller handle: a one-shot reply
// sink. Reply and ReplyError are each called at most once per Caller.
type Caller interface {
	Reply(data []byte) error
	ReplyError(err error) error
}

// StartArgs configures a new Server instance.
type StartArgs struct {
	MaxQueryPhones     int
	MaxRatelimitStates int
}

// StopArgs carries the untrusted directory slab passed to Terminate.
type StopArgs struct {
	InPhones     []byte
	InUUIDs      []byte
	InPhoneCount int
}

// phoneList is a bounded, zero-on-drop accumulator of query phones.
type phoneList struct {
	phones   []cdstypes.Phone
	capacity int
}

func newPhoneList(capacity int) *phoneList {
	return &phoneList{phones: make([]cdstypes.Phone, 0, capacity), capacity: capacity}
}

func (p *phoneList) remaining() int { return p.capacity - len(p.phones) }

func (p *phoneList) append(phones []cdstypes.Phone) error {
	if len(phones) > p.remaining() {
		return cdstypes.NewError(cdstypes.StatusErrInvalidParameter)
	}
	p.phones = append(p.phones, phones...)
	return nil
}

func (p *phoneList) zero() {
	for i := range p.phones {
		p.phones[i] = 0
	}
	p.phones = p.phones[:0]
}

// zeroPhones wipes a decoded phone slice returned by
// reqcodec.RequestPhoneList.Iter -- a fresh, independently allocated
// copy that req.Phones.Zero does not reach.
func zeroPhones(phones []cdstypes.Phone) {
	for i := range phones {
		phones[i] = 0
	}
}

type pendingRequest struct {
	from              Caller
	requestPhoneCount int
}

// Server drives one request/terminate lifecycle. A single instance is
// meant to be owned by one thread of control; the internal mutex
// enforces that even if the transport slips up and dispatches calls
// concurrently.
type Server struct {
	mu sync.Mutex

	queryPhones      *phoneList
	requests         []pendingRequest
	ratelimitEnabled bool
	terminated       bool
}

// Init starts a fresh Server instance.
func Init(args StartArgs) *Server {
	s := &Server{
		queryPhones: newPhoneList(args.MaxQueryPhones),
		requests:    make([]pendingRequest, 0, args.MaxQueryPhones/4),
	}
	if args.MaxRatelimitStates > 0 {
		ratelimitmap.Global(args.MaxRatelimitStates)
		s.ratelimitEnabled = true
	}
	metrics.ActiveInstances.Inc()
	return s
}

// HandleCall decodes and dispatches one call. Decode errors and
// rate-limit-path errors reply directly to from and are also returned,
// so the transport can log or account for them; batch-path success
// returns nil without replying (the reply happens at Terminate).
func (s *Server) HandleCall(ctx context.Context, args *reqcodec.CallArgs, requestData []byte, from Caller) error {
	_, span := tracer.Start(ctx, "handle_call")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		err := cdstypes.NewError(cdstypes.StatusErrInvalidState)
		from.ReplyError(err)
		return err
	}

	req, err := reqcodec.Decode(args, requestData, s.queryPhones.remaining())
	if err != nil {
		span.SetAttributes(attribute.String("outcome", "decode_error"))
		metrics.CallsHandled.WithLabelValues("unknown", "decode_error").Inc()
		from.ReplyError(err)
		return err
	}

	if req.RatelimitState != nil {
		span.SetAttributes(attribute.String("path", "ratelimit"))
		return s.handleRatelimit(req, from)
	}
	span.SetAttributes(attribute.String("path", "batch"))
	return s.handleBatch(req, from)
}

// handleRatelimit is the rate-limited branch: phones are canonicalised
// to their hash *before* entering the ratelimit set, and the
// ratelimit-state slab is updated synchronously.
func (s *Server) handleRatelimit(req *reqcodec.Request, from Caller) error {
	defer req.Phones.Zero()

	if !s.ratelimitEnabled {
		err := cdstypes.NewError(cdstypes.StatusErrInvalidState)
		from.ReplyError(err)
		return err
	}

	phones := req.Phones.Iter()
	defer zeroPhones(phones)
	for i := range phones {
		phonehash.Hash(&phones[i])
	}

	err := ratelimitmap.UpdateRatelimitState(req.RatelimitState.UUID, req.RatelimitState.Data, phones)
	if err != nil {
		outcome := "error"
		if cdstypes.AsStatus(err) == cdstypes.StatusErrRateLimitExceeded {
			outcome = "exceeded"
		}
		metrics.RatelimitOutcomes.WithLabelValues(outcome).Inc()
		metrics.CallsHandled.WithLabelValues("ratelimit", outcome).Inc()
		from.ReplyError(err)
		return err
	}

	metrics.RatelimitOutcomes.WithLabelValues("accepted").Inc()
	metrics.CallsHandled.WithLabelValues("ratelimit", "accepted").Inc()
	return from.Reply(nil)
}

// handleBatch is the non-rate-limited branch: raw phones are appended
// to the accumulator and the caller is parked until terminate.
func (s *Server) handleBatch(req *reqcodec.Request, from Caller) error {
	phones := req.Phones.Iter()
	defer req.Phones.Zero()
	defer zeroPhones(phones)

	if err := s.queryPhones.append(phones); err != nil {
		metrics.CallsHandled.WithLabelValues("batch", "overflow").Inc()
		from.ReplyError(err)
		return err
	}

	s.requests = append(s.requests, pendingRequest{from: from, requestPhoneCount: len(phones)})
	metrics.CallsHandled.WithLabelValues("batch", "parked").Inc()
	return nil
}

// Terminate runs the bulk lookup in chunks of lookup.MaxHashTableSize,
// then replies split by each pending request's phone count, in
// enqueue order.
func (s *Server) Terminate(ctx context.Context, args StopArgs, dir lookup.Directory) error {
	_, span := tracer.Start(ctx, "terminate")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return cdstypes.NewError(cdstypes.StatusErrInvalidState)
	}
	s.terminated = true
	defer metrics.ActiveInstances.Dec()

	if args.InPhoneCount < 0 ||
		args.InPhoneCount > (1<<62)/cdstypes.BytesPerUUID ||
		len(args.InPhones) != args.InPhoneCount*cdstypes.BytesPerPhone ||
		len(args.InUUIDs) != args.InPhoneCount*cdstypes.BytesPerUUID {
		s.queryPhones.zero()
		return cdstypes.NewError(cdstypes.StatusErrInvalidParameter)
	}

	metrics.BatchSize.Observe(float64(len(s.queryPhones.phones)))

	n := len(s.queryPhones.phones)
	result := secret.New(n * cdstypes.BytesPerUUID)
	defer result.Zero()

	for offset := 0; offset < n; offset += lookup.MaxHashTableSize {
		end := offset + lookup.MaxHashTableSize
		if end > n {
			end = n
		}
		queries := s.queryPhones.phones[offset:end]
		resultChunk := result.GetMut()[offset*cdstypes.BytesPerUUID : end*cdstypes.BytesPerUUID]
		if err := dir.HashLookup(args.InPhones, args.InUUIDs, args.InPhoneCount, queries, resultChunk); err != nil {
			s.queryPhones.zero()
			return err
		}
	}
	s.queryPhones.zero()

	pos := 0
	for _, pr := range s.requests {
		replyLen := pr.requestPhoneCount * cdstypes.BytesPerUUID
		reply := result.Get()[pos : pos+replyLen]
		if err := pr.from.Reply(reply); err != nil {
			log.Printf("server: reply failed, aborting terminate: %v", err)
			return err
		}
		pos += replyLen
	}
	s.requests = nil
	return nil
}
