package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

// TransitionRequest asks the LifecycleEngine to move a booking to Target.
type TransitionRequest struct {
	Target BookingStatus
	Actor  Actor
	Reason string
	// ProviderID is the provider an admin assigns when confirming.
	ProviderID *uuid.UUID
}

// LifecyclePolicy holds the tunable parts of the transition rules.
type LifecyclePolicy struct {
	// CancellationCutoff is the minimum lead time before scheduled_at for
	// cancelling a confirmed booking.
	CancellationCutoff time.Duration
}

type transitionGuard func(p LifecyclePolicy, b *Booking, req TransitionRequest, now time.Time) error

type transitionRule struct {
	roles []Role
	guard transitionGuard
}

func (r transitionRule) allows(role Role) bool {
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// lifecycleRules is the complete transition table. Pairs missing from it are
// illegal for every role.
var lifecycleRules = map[BookingStatus]map[BookingStatus]transitionRule{
	StatusPending: {
		StatusConfirmed: {roles: []Role{RoleAdmin, RoleProvider}, guard: guardConfirm},
		StatusCancelled: {roles: []Role{RoleAdmin, RoleClient, RoleSystem}, guard: guardCancel},
	},
	StatusConfirmed: {
		StatusCancelled:  {roles: []Role{RoleAdmin, RoleClient}, guard: guardCancelConfirmed},
		StatusInProgress: {roles: []Role{RoleProvider}, guard: guardAssignedProvider},
		StatusCompleted:  {roles: []Role{RoleProvider}, guard: guardAssignedProvider},
	},
	StatusInProgress: {
		StatusCompleted: {roles: []Role{RoleProvider}, guard: guardAssignedProvider},
	},
}

func guardConfirm(_ LifecyclePolicy, _ *Booking, req TransitionRequest, _ time.Time) error {
	if req.Actor.Role == RoleAdmin && (req.ProviderID == nil || *req.ProviderID == uuid.Nil) {
		return apperror.NewValidationError("provider_id is required to confirm a booking")
	}
	return nil
}

func guardCancel(_ LifecyclePolicy, b *Booking, req TransitionRequest, _ time.Time) error {
	switch req.Actor.Role {
	case RoleClient:
		if b.ClientID() != req.Actor.ID {
			return apperror.NewForbiddenError("only the owning client can cancel this booking")
		}
	case RoleAdmin:
		if strings.TrimSpace(req.Reason) == "" {
			return apperror.NewValidationError("reason is required when an admin cancels a booking")
		}
	}
	return nil
}

func guardCancelConfirmed(p LifecyclePolicy, b *Booking, req TransitionRequest, now time.Time) error {
	if err := guardCancel(p, b, req, now); err != nil {
		return err
	}
	if !now.Add(p.CancellationCutoff).Before(b.ScheduledAt()) {
		return apperror.NewIllegalTransitionError(string(b.Status()), string(StatusCancelled),
			fmt.Sprintf("cancellation cutoff of %s before the scheduled time has passed", p.CancellationCutoff))
	}
	return nil
}

func guardAssignedProvider(_ LifecyclePolicy, b *Booking, req TransitionRequest, _ time.Time) error {
	if !b.IsAssignedTo(req.Actor.ID) {
		return apperror.NewForbiddenError("only the assigned provider can perform this transition")
	}
	return nil
}

// LifecycleEngine validates and applies status transitions against role and state.
type LifecycleEngine struct {
	policy LifecyclePolicy
}

// NewLifecycleEngine creates a LifecycleEngine with the given policy.
func NewLifecycleEngine(policy LifecyclePolicy) *LifecycleEngine {
	return &LifecycleEngine{policy: policy}
}

// Authorize checks that req is legal for b at now without changing b.
func (e *LifecycleEngine) Authorize(b *Booking, req TransitionRequest, now time.Time) error {
	if !req.Target.IsValid() {
		return apperror.NewValidationError(fmt.Sprintf("invalid target status: %s", req.Target))
	}
	current := b.Status()
	rule, ok := lifecycleRules[current][req.Target]
	if !ok {
		return apperror.NewIllegalTransitionError(string(current), string(req.Target), "")
	}
	if !rule.allows(req.Actor.Role) {
		return apperror.NewIllegalTransitionError(string(current), string(req.Target),
			fmt.Sprintf("not permitted for role %s", req.Actor.Role))
	}
	if rule.guard != nil {
		return rule.guard(e.policy, b, req, now)
	}
	return nil
}

// RequiresClaim reports whether req assigns a provider, which must go
// through the atomic claim instead of Apply.
func RequiresClaim(b *Booking, req TransitionRequest) bool {
	return b.Status() == StatusPending && req.Target == StatusConfirmed
}

// Apply authorizes req and mutates b in memory. The caller persists b with a
// versioned conditional update.
func (e *LifecycleEngine) Apply(b *Booking, req TransitionRequest, now time.Time) error {
	if err := e.Authorize(b, req, now); err != nil {
		return err
	}
	switch req.Target {
	case StatusInProgress:
		return b.Start(now)
	case StatusCompleted:
		return b.Complete(now)
	case StatusCancelled:
		return b.Cancel(strings.TrimSpace(req.Reason), req.Actor.Role, now)
	default:
		return apperror.NewIllegalTransitionError(string(b.Status()), string(req.Target),
			"provider assignment must be claimed atomically")
	}
}
