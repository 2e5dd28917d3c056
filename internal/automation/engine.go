// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package automation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/flow"
	"github.com/leadflowhq/leadflow/internal/instagram"
	"github.com/leadflowhq/leadflow/internal/logging"
	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/models"
	"github.com/leadflowhq/leadflow/internal/plans"
)

const (
	// followButtonTitle labels the quick-reply button under follow requests.
	followButtonTitle = "I'm following ✅"

	// reminderPrefix softens the re-ask sent when a visitor confirms the
	// follow again while the flow is waiting for their email.
	reminderPrefix = "You're all set on the follow! "

	// deliverTimeout bounds delayed deliveries that run outside the
	// webhook request context.
	deliverTimeout = 30 * time.Second

	dedupeWindow = 8192
)

// AccountSource resolves the receiving account for a webhook entry.
type AccountSource interface {
	GetByIGUserID(ctx context.Context, igUserID string) (*models.InstagramAccount, error)
}

// RuleSource lists the rules the engine evaluates per account.
type RuleSource interface {
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.AutomationRule, error)
}

// LeadSink receives everything the engine records: captured leads, the
// audience roster, the DM audit log, and analytics events.
type LeadSink interface {
	CreateLead(ctx context.Context, lead *models.CapturedLead) error
	GetAudienceMember(ctx context.Context, accountID uuid.UUID, senderID string) (*models.AudienceMember, error)
	UpsertAudienceMember(ctx context.Context, m *models.AudienceMember) error
	LogDM(ctx context.Context, log *models.DMLog) error
	RecordEvent(ctx context.Context, ev *models.AnalyticsEvent) error
}

// TierSource resolves the effective plan tier for a user.
type TierSource interface {
	TierForUser(ctx context.Context, userID uuid.UUID) (models.PlanTier, error)
}

// QuotaKeeper checks and records DM usage. Implemented by plans.Enforcer.
type QuotaKeeper interface {
	CheckDMSend(ctx context.Context, userID uuid.UUID, tier models.PlanTier) error
	RecordDM(ctx context.Context, userID uuid.UUID) error
}

// Notifier pushes live activity to connected dashboard clients.
type Notifier interface {
	Broadcast(event string, payload any)
}

// Deps wires the engine's collaborators.
type Deps struct {
	Accounts AccountSource
	Rules    RuleSource
	Leads    LeadSink
	Tiers    TierSource
	Quota    QuotaKeeper
	States   flow.Store
	API      instagram.API

	// Notifier may be nil; live updates are then skipped.
	Notifier Notifier
}

// Engine consumes normalized inbound events, runs the conversation flow,
// and delivers the resulting messages through the Graph API.
type Engine struct {
	accounts AccountSource
	rules    RuleSource
	leads    LeadSink
	tiers    TierSource
	quota    QuotaKeeper
	states   flow.Store
	api      instagram.API
	notifier Notifier
	dedupe   *Deduper

	// schedule defers a function, overridable in tests.
	schedule func(d time.Duration, fn func())
}

// NewEngine creates an automation engine.
func NewEngine(d Deps) *Engine {
	return &Engine{
		accounts: d.Accounts,
		rules:    d.Rules,
		leads:    d.Leads,
		tiers:    d.Tiers,
		quota:    d.Quota,
		states:   d.States,
		api:      d.API,
		notifier: d.Notifier,
		dedupe:   NewDeduper(dedupeWindow),
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// HandleEvent processes one inbound event end to end. A returned error
// means delivery failed and the event is safe to retry; everything the
// engine decided is recomputed from stored state on the next attempt.
func (e *Engine) HandleEvent(ctx context.Context, ev *models.InboundEvent) error {
	log := logging.With().
		Str("kind", string(ev.Kind)).
		Str("sender_id", ev.SenderID).
		Str("ig_account", ev.AccountID).
		Logger()

	if e.dedupe.Seen(ev.DedupKey()) {
		metrics.WebhookEventsTotal.WithLabelValues(string(ev.Kind), "duplicate").Inc()
		log.Debug().Str("dedup_key", ev.DedupKey()).Msg("duplicate event dropped")
		return nil
	}

	account, err := e.accounts.GetByIGUserID(ctx, ev.AccountID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.WebhookEventsTotal.WithLabelValues(string(ev.Kind), "unknown_account").Inc()
			log.Debug().Msg("event for unconnected account dropped")
			return nil
		}
		return fmt.Errorf("automation: resolve account: %w", err)
	}

	// Events from the account itself are echoes of our own sends.
	if ev.SenderID == "" || ev.SenderID == account.IGUserID {
		metrics.WebhookEventsTotal.WithLabelValues(string(ev.Kind), "echo").Inc()
		return nil
	}

	rules, err := e.rules.ListActiveByAccount(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("automation: list rules: %w", err)
	}

	rule, state := e.resolveRule(ctx, rules, ev)
	if rule == nil {
		metrics.WebhookEventsTotal.WithLabelValues(string(ev.Kind), "no_match").Inc()
		return nil
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(ev.Kind), "matched").Inc()
	metrics.RuleMatchesTotal.WithLabelValues(string(rule.Trigger)).Inc()

	member := e.lookupMember(ctx, account.ID, ev.SenderID)
	e.touchMember(ctx, account.ID, ev)

	decision := flow.Decide(state, ev, rule, member)
	metrics.AutomationActionsTotal.WithLabelValues(string(decision.Action)).Inc()

	if state == nil {
		e.recordEvent(ctx, account.ID, rule.ID, ev.SenderID, "trigger_matched")
	}

	if decision.Action == flow.ActionIgnore {
		return e.persistState(ctx, decision.Next)
	}

	// A configured delay only applies to the first message of a flow. The
	// timer lives in this process; a restart drops pending deliveries and
	// the visitor's next message restarts the flow.
	if rule.DelayMinutes > 0 && state == nil {
		delay := time.Duration(rule.DelayMinutes) * time.Minute
		log.Info().Int("delay_minutes", rule.DelayMinutes).Msg("delivery scheduled")
		e.schedule(delay, func() {
			dctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
			defer cancel()
			if err := e.deliver(dctx, account, rule, ev, decision); err != nil {
				logging.Error().Err(err).
					Str("rule_id", rule.ID.String()).
					Str("sender_id", ev.SenderID).
					Msg("delayed delivery failed")
			}
		})
		return nil
	}

	return e.deliver(ctx, account, rule, ev, decision)
}

// resolveRule routes the event. A sender with an unfinished flow stays in
// that flow regardless of what the event would otherwise trigger; fresh
// events go through rule matching.
func (e *Engine) resolveRule(ctx context.Context, rules []*models.AutomationRule, ev *models.InboundEvent) (*models.AutomationRule, *flow.State) {
	var best *models.AutomationRule
	var bestState *flow.State
	for _, rule := range rules {
		st, err := e.states.Get(ctx, flow.StateKey(ev.SenderID, rule.ID.String()))
		if err != nil {
			if !errors.Is(err, flow.ErrStateNotFound) {
				logging.Warn().Err(err).Str("rule_id", rule.ID.String()).Msg("state lookup failed")
			}
			continue
		}
		if st.PrimaryDMSent {
			continue
		}
		if bestState == nil || st.UpdatedAt.After(bestState.UpdatedAt) {
			best, bestState = rule, st
		}
	}
	if best != nil {
		return best, bestState
	}

	matched := Match(rules, ev)
	if matched == nil {
		return nil, nil
	}

	// Completed flows keep their state so redeliveries and repeat
	// triggers stay silent.
	st, err := e.states.Get(ctx, flow.StateKey(ev.SenderID, matched.ID.String()))
	if err != nil {
		return matched, nil
	}
	return matched, st
}

// deliver sends the decided message, then records everything that
// followed from a successful send.
func (e *Engine) deliver(ctx context.Context, account *models.InstagramAccount, rule *models.AutomationRule, ev *models.InboundEvent, decision flow.Decision) error {
	tier, err := e.tiers.TierForUser(ctx, account.UserID)
	if err != nil {
		return fmt.Errorf("automation: resolve tier: %w", err)
	}
	if err := e.quota.CheckDMSend(ctx, account.UserID, tier); err != nil {
		var limitErr *plans.LimitError
		if errors.As(err, &limitErr) {
			logging.Warn().
				Str("user_id", account.UserID.String()).
				Str("tier", string(limitErr.Tier)).
				Int("sent", limitErr.Current).
				Msg("dm quota exhausted, event dropped")
			e.recordEvent(ctx, account.ID, rule.ID, ev.SenderID, "limit_denied")
			return nil
		}
		return fmt.Errorf("automation: quota check: %w", err)
	}

	text, withButton := e.composeText(rule, decision.Action)
	if text == "" {
		logging.Warn().
			Str("rule_id", rule.ID.String()).
			Str("action", string(decision.Action)).
			Msg("rule has no message configured for action")
		return nil
	}
	text = truncateRunes(text, instagram.MaxDMLength)

	mid, err := e.send(ctx, account, ev, text, withButton)
	if err != nil {
		return fmt.Errorf("automation: send %s: %w", decision.Action, err)
	}

	kind := dmKind(decision.Action)
	metrics.DMsSentTotal.WithLabelValues(kind).Inc()

	ruleID := rule.ID
	if err := e.leads.LogDM(ctx, &models.DMLog{
		AccountID:   account.ID,
		RuleID:      &ruleID,
		RecipientID: ev.SenderID,
		Kind:        kind,
		Text:        text,
	}); err != nil {
		logging.Error().Err(err).Msg("dm log write failed")
	}
	if err := e.quota.RecordDM(ctx, account.UserID); err != nil {
		logging.Error().Err(err).Msg("usage increment failed")
	}
	e.recordEvent(ctx, account.ID, rule.ID, ev.SenderID, "dm_sent")

	if ev.Kind == models.EventComment && rule.Config.AutoReplyToComments {
		e.replyToComment(ctx, account, rule, ev)
	}

	if decision.Next != nil && decision.Next.FollowConfirmed {
		e.markFollowing(ctx, account.ID, ev)
	}

	if decision.Email != "" || decision.Phone != "" {
		e.captureLead(ctx, account, rule, ev, decision)
	}

	if err := e.persistState(ctx, decision.Next); err != nil {
		logging.Error().Err(err).Msg("state write failed after send")
	}

	if decision.Action == flow.ActionSendPrimary {
		e.recordEvent(ctx, account.ID, rule.ID, ev.SenderID, "flow_completed")
	}

	e.broadcast("dm_sent", map[string]any{
		"account_id": account.ID,
		"rule_id":    rule.ID,
		"sender_id":  ev.SenderID,
		"kind":       kind,
		"mid":        mid,
	})

	return nil
}

// send picks the transport. Comment events answer through a private
// reply; DM events use the send API and fall back to a private reply
// when the 24 hour messaging window has closed and a comment is on hand.
func (e *Engine) send(ctx context.Context, account *models.InstagramAccount, ev *models.InboundEvent, text string, withButton bool) (string, error) {
	if ev.Kind == models.EventComment {
		return e.api.SendPrivateReply(ctx, account.AccessToken, ev.CommentID, text)
	}

	var mid string
	var err error
	if withButton {
		mid, err = e.api.SendDMWithButton(ctx, account.PageID, account.AccessToken, ev.SenderID, text, followButtonTitle, flow.FollowButtonPayload)
	} else {
		mid, err = e.api.SendDM(ctx, account.PageID, account.AccessToken, ev.SenderID, text)
	}
	if err == nil {
		return mid, nil
	}

	var graphErr *instagram.GraphError
	if errors.As(err, &graphErr) && graphErr.OutsideMessagingWindow() && ev.CommentID != "" {
		logging.Info().Str("comment_id", ev.CommentID).Msg("messaging window closed, retrying as private reply")
		return e.api.SendPrivateReply(ctx, account.AccessToken, ev.CommentID, text)
	}
	return "", err
}

func (e *Engine) replyToComment(ctx context.Context, account *models.InstagramAccount, rule *models.AutomationRule, ev *models.InboundEvent) {
	reply := pickRandom(rule.CommentReplies)
	if reply == "" {
		return
	}
	reply = truncateRunes(reply, instagram.MaxCommentLength)
	if err := e.api.ReplyToComment(ctx, account.AccessToken, ev.CommentID, reply); err != nil {
		logging.Warn().Err(err).Str("comment_id", ev.CommentID).Msg("public comment reply failed")
		return
	}
	metrics.DMsSentTotal.WithLabelValues("comment_reply").Inc()
	ruleID := rule.ID
	if err := e.leads.LogDM(ctx, &models.DMLog{
		AccountID:   account.ID,
		RuleID:      &ruleID,
		RecipientID: ev.SenderID,
		Kind:        "comment_reply",
		Text:        reply,
	}); err != nil {
		logging.Error().Err(err).Msg("dm log write failed")
	}
}

func (e *Engine) captureLead(ctx context.Context, account *models.InstagramAccount, rule *models.AutomationRule, ev *models.InboundEvent, decision flow.Decision) {
	ruleID := rule.ID
	lead := &models.CapturedLead{
		AccountID: account.ID,
		RuleID:    &ruleID,
		SenderID:  ev.SenderID,
		Username:  ev.Username,
		Email:     decision.Email,
		Phone:     decision.Phone,
		Source:    leadSource(ev.Kind),
	}
	if err := e.leads.CreateLead(ctx, lead); err != nil {
		logging.Error().Err(err).Msg("lead write failed")
		return
	}
	if err := e.leads.UpsertAudienceMember(ctx, &models.AudienceMember{
		AccountID: account.ID,
		SenderID:  ev.SenderID,
		Username:  ev.Username,
		Email:     decision.Email,
		Phone:     decision.Phone,
	}); err != nil {
		logging.Error().Err(err).Msg("audience update failed")
	}
	e.recordEvent(ctx, account.ID, rule.ID, ev.SenderID, "lead_captured")
	e.broadcast("lead_captured", lead)
}

func (e *Engine) lookupMember(ctx context.Context, accountID uuid.UUID, senderID string) *models.AudienceMember {
	member, err := e.leads.GetAudienceMember(ctx, accountID, senderID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Warn().Err(err).Msg("audience lookup failed")
		}
		return nil
	}
	return member
}

// touchMember records contact so last_seen_at tracks activity even for
// visitors who never convert.
func (e *Engine) touchMember(ctx context.Context, accountID uuid.UUID, ev *models.InboundEvent) {
	if err := e.leads.UpsertAudienceMember(ctx, &models.AudienceMember{
		AccountID: accountID,
		SenderID:  ev.SenderID,
		Username:  ev.Username,
	}); err != nil {
		logging.Warn().Err(err).Msg("audience touch failed")
	}
}

func (e *Engine) markFollowing(ctx context.Context, accountID uuid.UUID, ev *models.InboundEvent) {
	if err := e.leads.UpsertAudienceMember(ctx, &models.AudienceMember{
		AccountID:   accountID,
		SenderID:    ev.SenderID,
		Username:    ev.Username,
		IsFollowing: true,
	}); err != nil {
		logging.Warn().Err(err).Msg("follow flag update failed")
	}
}

func (e *Engine) persistState(ctx context.Context, next *flow.State) error {
	if next == nil {
		return nil
	}
	return e.states.Put(ctx, next)
}

func (e *Engine) recordEvent(ctx context.Context, accountID, ruleID uuid.UUID, senderID, kind string) {
	rid := ruleID
	if err := e.leads.RecordEvent(ctx, &models.AnalyticsEvent{
		AccountID: accountID,
		RuleID:    &rid,
		SenderID:  senderID,
		Kind:      kind,
	}); err != nil {
		logging.Warn().Err(err).Str("event_kind", kind).Msg("analytics write failed")
	}
}

func (e *Engine) broadcast(event string, payload any) {
	if e.notifier == nil {
		return
	}
	e.notifier.Broadcast(event, payload)
}

// composeText resolves the outbound message for an action. The second
// return marks messages that carry the follow confirmation button.
func (e *Engine) composeText(rule *models.AutomationRule, action flow.Action) (string, bool) {
	switch action {
	case flow.ActionSendFollowRequest:
		return rule.FollowMessage, true
	case flow.ActionSendEmailRequest:
		return rule.EmailMessage, false
	case flow.ActionSendEmailRetry:
		if rule.EmailRetryMessage != "" {
			return rule.EmailRetryMessage, false
		}
		return rule.EmailMessage, false
	case flow.ActionSendReminder:
		if rule.EmailMessage == "" {
			return "", false
		}
		return reminderPrefix + rule.EmailMessage, false
	case flow.ActionSendPrimary:
		return pickRandom(rule.MessageVariations), false
	}
	return "", false
}

func dmKind(action flow.Action) string {
	switch action {
	case flow.ActionSendFollowRequest:
		return "follow_request"
	case flow.ActionSendEmailRequest:
		return "email_request"
	case flow.ActionSendEmailRetry:
		return "retry"
	case flow.ActionSendReminder:
		return "reminder"
	default:
		return "primary"
	}
}

func leadSource(kind models.EventKind) string {
	switch kind {
	case models.EventComment:
		return "post_comment"
	case models.EventStoryReply:
		return "story_reply"
	default:
		return "dm"
	}
}

func pickRandom(options []string) string {
	switch len(options) {
	case 0:
		return ""
	case 1:
		return options[0]
	}
	return options[rand.IntN(len(options))]
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
