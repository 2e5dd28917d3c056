// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package flow

import (
	"time"

	"github.com/leadflowhq/leadflow/internal/leads"
	"github.com/leadflowhq/leadflow/internal/models"
)

// Action is the next outbound step the engine must take for an event.
type Action string

const (
	// ActionSendFollowRequest asks the visitor to follow the account.
	ActionSendFollowRequest Action = "send_follow_request"

	// ActionSendEmailRequest asks the visitor for an email or phone.
	ActionSendEmailRequest Action = "send_email_request"

	// ActionSendPrimary delivers the reward DM.
	ActionSendPrimary Action = "send_primary"

	// ActionSendEmailRetry re-asks after an invalid email.
	ActionSendEmailRetry Action = "send_email_retry"

	// ActionSendReminder nudges a visitor who confirmed the follow again
	// while the flow is waiting for their email.
	ActionSendReminder Action = "send_reminder"

	// ActionIgnore drops the event without replying.
	ActionIgnore Action = "ignore"
)

// Decision is the outcome of evaluating one inbound event against a rule.
// Next carries the updated state the caller must persist (nil means the
// state is unchanged and need not be written).
type Decision struct {
	Action Action

	// Email is the address captured from this event, if any.
	Email string

	// Phone is the phone number captured from this event, if any.
	Phone string

	Next *State
}

// Decide evaluates one inbound event for a (sender, rule) pair.
//
// state may be nil for first contact. member may be nil when no audience
// record exists yet. The function never mutates its inputs; the updated
// state is returned in Decision.Next.
//
// The VIP shortcut consults the global conversion record only after this
// flow has sent its own follow request. First contact always starts the
// gated sequence, so a Post flow and a Story flow for the same sender
// stay isolated: converting on one never skips the other's opening ask.
func Decide(state *State, ev *models.InboundEvent, rule *models.AutomationRule, member *models.AudienceMember) Decision {
	cfg := rule.Config

	// Simple mode: one loop, no gates. Every trigger gets the reward DM.
	if cfg.SimpleMode {
		next := cloneOrNew(state, ev.SenderID, rule.ID.String())
		next.Step = StepCompleted
		next.PrimaryDMSent = true
		return Decision{Action: ActionSendPrimary, Next: next}
	}

	if state == nil {
		return decideFirstContact(ev, rule)
	}

	// Completed flows stay silent. The visitor already has the reward.
	if state.PrimaryDMSent {
		return Decision{Action: ActionIgnore}
	}

	if state.FollowRequestSent && !state.FollowConfirmed {
		return decideAwaitingFollow(state, ev, rule, member)
	}

	if state.EmailRequestSent && !state.EmailReceived {
		return decideAwaitingEmail(state, ev, rule)
	}

	// Gates satisfied but the primary DM has not gone out yet (e.g. a send
	// failure on the previous event). Deliver it now.
	next := clone(state)
	next.Step = StepCompleted
	next.PrimaryDMSent = true
	return Decision{Action: ActionSendPrimary, Next: next}
}

// decideFirstContact handles the first event of a flow. The conversion
// record is deliberately not consulted here: the shortcut belongs to the
// awaiting-follow step.
func decideFirstContact(ev *models.InboundEvent, rule *models.AutomationRule) Decision {
	cfg := rule.Config
	next := NewState(ev.SenderID, rule.ID.String())

	if cfg.RequireFollow {
		next.Step = StepAwaitingFollow
		next.FollowRequestSent = true
		return Decision{Action: ActionSendFollowRequest, Next: next}
	}

	if cfg.RequireEmail {
		next.Step = StepAwaitingEmail
		next.EmailRequestSent = true
		return Decision{Action: ActionSendEmailRequest, Next: next}
	}

	next.Step = StepCompleted
	next.PrimaryDMSent = true
	return Decision{Action: ActionSendPrimary, Next: next}
}

// decideAwaitingFollow handles events while the flow waits for a follow
// confirmation.
func decideAwaitingFollow(state *State, ev *models.InboundEvent, rule *models.AutomationRule, member *models.AudienceMember) Decision {
	cfg := rule.Config

	// VIP shortcut: the follow request for this flow is out, and the
	// account already knows this sender follows. No confirmation phrase is
	// needed; skip to the email ask, or straight to the reward when the
	// email is on file too.
	if cfg.VIPShortcut && member != nil && member.IsFollowing {
		next := clone(state)
		next.FollowConfirmed = true
		if cfg.RequireEmail && member.Email == "" {
			next.Step = StepAwaitingEmail
			next.EmailRequestSent = true
			return Decision{Action: ActionSendEmailRequest, Next: next}
		}
		next.Step = StepCompleted
		next.EmailRequestSent = cfg.RequireEmail
		next.EmailReceived = member.Email != ""
		next.Email = member.Email
		next.PrimaryDMSent = true
		return Decision{Action: ActionSendPrimary, Next: next}
	}

	confirmed := ev.Payload == FollowButtonPayload || IsFollowConfirmation(ev.Text)
	if !confirmed {
		if cfg.StrictMode {
			// Strict mode: random chatter does not advance the flow.
			return Decision{Action: ActionIgnore}
		}
		// Re-ask so the visitor knows what the flow is waiting for.
		return Decision{Action: ActionSendFollowRequest}
	}

	next := clone(state)
	next.FollowConfirmed = true
	if ev.Payload == FollowButtonPayload {
		next.FollowButtonTapped = true
	}

	if cfg.RequireEmail && !next.EmailReceived {
		next.Step = StepAwaitingEmail
		next.EmailRequestSent = true
		return Decision{Action: ActionSendEmailRequest, Next: next}
	}

	next.Step = StepCompleted
	next.PrimaryDMSent = true
	return Decision{Action: ActionSendPrimary, Next: next}
}

// decideAwaitingEmail handles events while the flow waits for an email.
func decideAwaitingEmail(state *State, ev *models.InboundEvent, _ *models.AutomationRule) Decision {
	if email, ok := leads.ExtractEmail(ev.Text); ok {
		if leads.IsDisposable(email) {
			// Disposable addresses do not count as a capture.
			return Decision{Action: ActionSendEmailRetry}
		}
		next := clone(state)
		next.Step = StepCompleted
		next.EmailReceived = true
		next.Email = email
		next.PrimaryDMSent = true
		return Decision{Action: ActionSendPrimary, Email: email, Next: next}
	}

	if phone, ok := leads.ExtractPhone(ev.Text); ok {
		next := clone(state)
		next.Step = StepCompleted
		next.EmailReceived = true
		next.PrimaryDMSent = true
		return Decision{Action: ActionSendPrimary, Phone: phone, Next: next}
	}

	// A late follow confirmation while we wait for the email gets a
	// friendly reminder restating the ask instead of the retry message.
	if ev.Payload == FollowButtonPayload || IsFollowConfirmation(ev.Text) {
		return Decision{Action: ActionSendReminder}
	}

	return Decision{Action: ActionSendEmailRetry}
}

func clone(s *State) *State {
	cp := *s
	cp.UpdatedAt = time.Now().UTC()
	return &cp
}

func cloneOrNew(s *State, senderID, ruleID string) *State {
	if s == nil {
		return NewState(senderID, ruleID)
	}
	return clone(s)
}
