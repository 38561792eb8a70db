package calls

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"rtc-signaling/internal/auth"

	"github.com/google/uuid"
)

// Presence is the user-presence lookup the state machine consults at invite
// time. internal/presence.Registry satisfies it.
type Presence interface {
	IsOnline(userID string) bool
}

// Dispatcher pushes a named event to every live session of a user.
// Delivery is fire-and-forget; the bool only reports whether the user was
// reachable (had at least one session). The websocket hub satisfies it.
type Dispatcher interface {
	EmitToUser(userID, event string, payload any) bool
}

// Repository is the durable call-history surface. Writes are best-effort:
// a failure is logged and never blocks or rolls back a state transition.
type Repository interface {
	Create(ctx context.Context, rec Record) error
	Patch(ctx context.Context, id string, p RecordPatch) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
}

// SlotLimiter caps concurrent call attempts per caller. May be nil (no cap).
type SlotLimiter interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string)
}

// CacheInvalidator drops cached history views after a record write.
// May be nil.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string)
}

var ErrInvalidArgument = errors.New("calls: invalid argument")

const persistTimeout = 5 * time.Second

// Service is the call-signaling state machine. Each transition re-validates
// session state under the store lock, applies the in-memory change first, and
// only then fires notifications and schedules the history write.
//
// History writes are issued to a single worker in transition order, so the
// provisional create always lands before the terminal patch for the same
// record. They remain best-effort: a failed write is logged and never rolls
// back a transition.
type Service struct {
	store    *Store
	presence Presence
	dispatch Dispatcher
	repo     Repository
	slots    SlotLimiter
	cache    CacheInvalidator

	ringTimeout time.Duration
	clock       func() time.Time
	log         *slog.Logger

	persistCh chan func(context.Context)
	done      chan struct{}
	closeOnce sync.Once
}

type ServiceConfig struct {
	RingTimeout time.Duration
	Slots       SlotLimiter
	Cache       CacheInvalidator
	Logger      *slog.Logger
}

func NewService(store *Store, presence Presence, dispatch Dispatcher, repo Repository, cfg ServiceConfig) *Service {
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Service{
		store:       store,
		presence:    presence,
		dispatch:    dispatch,
		repo:        repo,
		slots:       cfg.Slots,
		cache:       cfg.Cache,
		ringTimeout: cfg.RingTimeout,
		clock:       time.Now,
		log:         cfg.Logger,
		persistCh:   make(chan func(context.Context), 256),
		done:        make(chan struct{}),
	}
	go s.persistLoop()
	return s
}

// Close stops the history-write worker. Pending writes may be dropped;
// history is best-effort by design.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// InviteInput is the parsed invite payload.
type InviteInput struct {
	ToUserID       string
	Media          MediaKind
	ConversationID string
}

// Invite starts a call attempt. An offline callee is a defined outcome, not
// an error: the caller gets `unavailable` and a missed record is written
// without ever creating a session. The returned error only covers malformed
// input; the transport layer reports it to the originating session alone.
func (s *Service) Invite(ctx context.Context, caller auth.Identity, in InviteInput) error {
	if in.ToUserID == "" || !in.Media.Valid() {
		return ErrInvalidArgument
	}
	if in.ToUserID == caller.UserID {
		return ErrInvalidArgument
	}

	now := s.clock().UTC()

	if ok := s.acquireSlot(ctx, caller.UserID); !ok {
		s.dispatch.EmitToUser(caller.UserID, EventBusy, UnavailablePayload{ToUserID: in.ToUserID})
		return nil
	}

	if !s.presence.IsOnline(in.ToUserID) {
		s.releaseSlot(caller.UserID)
		s.persistCreate(Record{
			ID:             uuid.NewString(),
			CallerID:       caller.UserID,
			CalleeID:       in.ToUserID,
			Media:          in.Media,
			ConversationID: in.ConversationID,
			Status:         RecordMissed,
			CreatedAt:      now,
		})
		s.dispatch.EmitToUser(caller.UserID, EventUnavailable, UnavailablePayload{ToUserID: in.ToUserID})
		return nil
	}

	sess := &Session{
		ID:             uuid.NewString(),
		CallerID:       caller.UserID,
		CalleeID:       in.ToUserID,
		Media:          in.Media,
		State:          StateRinging,
		ConversationID: in.ConversationID,
		CreatedAt:      now,
		RecordID:       uuid.NewString(),
	}
	if !s.store.Put(sess) {
		// uuid collision; do not leak the slot.
		s.releaseSlot(caller.UserID)
		s.log.Error("call session id collision", "call_id", sess.ID)
		return ErrInvalidArgument
	}

	s.persistCreate(Record{
		ID:             sess.RecordID,
		CallerID:       sess.CallerID,
		CalleeID:       sess.CalleeID,
		Media:          sess.Media,
		ConversationID: sess.ConversationID,
		Status:         RecordRinging,
		CreatedAt:      now,
	})

	s.dispatch.EmitToUser(sess.CalleeID, EventRinging, RingingPayload{
		CallID:         sess.ID,
		CallerID:       sess.CallerID,
		Media:          sess.Media,
		ConversationID: sess.ConversationID,
		Caller:         DisplayInfo{Username: caller.Username, AvatarURL: caller.AvatarURL},
	})
	s.dispatch.EmitToUser(sess.CallerID, EventCreated, CallRef{CallID: sess.ID})

	callID := sess.ID
	s.store.ArmTimer(callID, s.ringTimeout, func() { s.handleRingTimeout(callID) })

	return nil
}

// Accept transitions ringing -> active. Only the registered callee may
// accept; anyone else, a stale call ID, or a repeated accept is a silent
// no-op (at most one `accepted` notification ever reaches the caller).
func (s *Service) Accept(ctx context.Context, userID, callID string) {
	now := s.clock().UTC()

	snap, ok := s.store.Update(callID, func(sess *Session) bool {
		if sess.State != StateRinging || sess.CalleeID != userID {
			return false
		}
		sess.State = StateActive
		sess.StartedAt = now
		sess.stopTimerLocked()
		return true
	})
	if !ok {
		return
	}

	s.dispatch.EmitToUser(snap.CallerID, EventAccepted, CallRef{CallID: callID})
}

// Reject transitions ringing -> ended(declined). Callee only.
func (s *Service) Reject(ctx context.Context, userID, callID string) {
	now := s.clock().UTC()

	_, ok := s.store.Update(callID, func(sess *Session) bool {
		if sess.State != StateRinging || sess.CalleeID != userID {
			return false
		}
		sess.State = StateEnded
		sess.EndedAt = now
		return true
	})
	if !ok {
		return
	}

	snap, ok := s.store.Remove(callID)
	if !ok {
		return
	}
	s.dispatch.EmitToUser(snap.CallerID, EventRejected, CallRef{CallID: callID})
	s.finishRecord(snap, RecordDeclined, 0)
	s.releaseSlot(snap.CallerID)
}

// Cancel transitions ringing -> ended(canceled). Caller only.
func (s *Service) Cancel(ctx context.Context, userID, callID string) {
	now := s.clock().UTC()

	_, ok := s.store.Update(callID, func(sess *Session) bool {
		if sess.State != StateRinging || sess.CallerID != userID {
			return false
		}
		sess.State = StateEnded
		sess.EndedAt = now
		return true
	})
	if !ok {
		return
	}

	snap, ok := s.store.Remove(callID)
	if !ok {
		return
	}
	s.dispatch.EmitToUser(snap.CalleeID, EventCanceled, CallRef{CallID: callID})
	s.finishRecord(snap, RecordCanceled, 0)
	s.releaseSlot(snap.CallerID)
}

// End tears down a call from either party. From active it completes the call
// with a computed duration; from ringing it is cancel-equivalent (caller) or
// decline-equivalent (callee).
func (s *Service) End(ctx context.Context, userID, callID string) {
	now := s.clock().UTC()

	var wasActive bool
	_, ok := s.store.Update(callID, func(sess *Session) bool {
		if _, isParty := sess.Counterpart(userID); !isParty {
			return false
		}
		if sess.State != StateActive && sess.State != StateRinging {
			return false
		}
		wasActive = sess.State == StateActive
		sess.State = StateEnded
		sess.EndedAt = now
		return true
	})
	if !ok {
		return
	}

	snap, ok := s.store.Remove(callID)
	if !ok {
		return
	}

	if wasActive {
		duration := int(snap.EndedAt.Sub(snap.StartedAt) / time.Second)
		if duration < 0 {
			duration = 0
		}
		other, _ := snap.Counterpart(userID)
		s.dispatch.EmitToUser(other, EventEnded, EndedPayload{CallID: callID, DurationSeconds: duration})
		s.finishRecord(snap, RecordCompleted, duration)
	} else if userID == snap.CallerID {
		s.dispatch.EmitToUser(snap.CalleeID, EventCanceled, CallRef{CallID: callID})
		s.finishRecord(snap, RecordCanceled, 0)
	} else {
		s.dispatch.EmitToUser(snap.CallerID, EventRejected, CallRef{CallID: callID})
		s.finishRecord(snap, RecordDeclined, 0)
	}
	s.releaseSlot(snap.CallerID)
}

// handleRingTimeout fires when nobody accepted or rejected in time. The state
// re-check under the store lock makes an accept/timeout race resolve to
// exactly one outcome: if the session already left ringing, this is a no-op.
func (s *Service) handleRingTimeout(callID string) {
	now := s.clock().UTC()

	_, ok := s.store.Update(callID, func(sess *Session) bool {
		if sess.State != StateRinging {
			return false
		}
		sess.State = StateEnded
		sess.EndedAt = now
		return true
	})
	if !ok {
		return
	}

	snap, ok := s.store.Remove(callID)
	if !ok {
		return
	}
	s.dispatch.EmitToUser(snap.CallerID, EventTimeout, CallRef{CallID: callID})
	s.dispatch.EmitToUser(snap.CalleeID, EventTimeout, CallRef{CallID: callID})
	s.finishRecord(snap, RecordMissed, 0)
	s.releaseSlot(snap.CallerID)
}

// Forward relays an opaque negotiation payload (SDP offer/answer or ICE
// candidate) to the other party of the session, verbatim. A missing session
// or a sender that is not a party is silently dropped; that is the normal
// race window around teardown.
func (s *Service) Forward(userID, callID, kind string, payload json.RawMessage) {
	switch kind {
	case EventOffer, EventAnswer, EventICECandidate:
	default:
		return
	}

	snap, ok := s.store.Get(callID)
	if !ok {
		return
	}
	other, isParty := snap.Counterpart(userID)
	if !isParty {
		return
	}
	s.dispatch.EmitToUser(other, kind, payload)
}

// ActiveSessions reports the number of in-flight call negotiations.
func (s *Service) ActiveSessions() int {
	return s.store.Len()
}

/* ===================== SIDE-EFFECT HELPERS ===================== */

// finishRecord patches the history row for a terminal transition.
func (s *Service) finishRecord(snap Session, status RecordStatus, duration int) {
	s.persistPatch(snap, RecordPatch{
		Status:          status,
		StartedAt:       snap.StartedAt,
		EndedAt:         snap.EndedAt,
		DurationSeconds: duration,
	})
}

func (s *Service) persistCreate(rec Record) {
	s.enqueuePersist(func(ctx context.Context) {
		if err := s.repo.Create(ctx, rec); err != nil {
			s.log.Error("call record create failed", "record_id", rec.ID, "err", err)
			return
		}
		s.invalidate(ctx, rec.CallerID, rec.CalleeID)
	})
}

func (s *Service) persistPatch(snap Session, p RecordPatch) {
	s.enqueuePersist(func(ctx context.Context) {
		if err := s.repo.Patch(ctx, snap.RecordID, p); err != nil {
			s.log.Error("call record patch failed", "record_id", snap.RecordID, "err", err)
			return
		}
		s.invalidate(ctx, snap.CallerID, snap.CalleeID)
	})
}

func (s *Service) enqueuePersist(op func(context.Context)) {
	select {
	case <-s.done:
	case s.persistCh <- op:
	default:
		// Queue full: run immediately rather than blocking a transition.
		// Sacrifices write ordering only under sustained backlog.
		go s.runPersist(op)
	}
}

func (s *Service) persistLoop() {
	for {
		select {
		case <-s.done:
			return
		case op := <-s.persistCh:
			s.runPersist(op)
		}
	}
}

func (s *Service) runPersist(op func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	op(ctx)
}

func (s *Service) invalidate(ctx context.Context, userIDs ...string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, userIDs...)
}

// acquireSlot is fail-open: if the limiter backend is unreachable the call is
// allowed, so a Redis outage degrades the cap rather than all calling.
func (s *Service) acquireSlot(ctx context.Context, userID string) bool {
	if s.slots == nil {
		return true
	}
	ok, err := s.slots.Acquire(ctx, userID)
	if err != nil {
		s.log.Error("call slot acquire failed", "user_id", userID, "err", err)
		return true
	}
	return ok
}

func (s *Service) releaseSlot(userID string) {
	if s.slots == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		s.slots.Release(ctx, userID)
	}()
}
