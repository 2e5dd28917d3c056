// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package automation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/flow"
	"github.com/leadflowhq/leadflow/internal/instagram"
	"github.com/leadflowhq/leadflow/internal/models"
	"github.com/leadflowhq/leadflow/internal/plans"
)

type fakeAccounts struct {
	account *models.InstagramAccount
}

func (f *fakeAccounts) GetByIGUserID(_ context.Context, igUserID string) (*models.InstagramAccount, error) {
	if f.account == nil || f.account.IGUserID != igUserID {
		return nil, database.ErrNotFound
	}
	return f.account, nil
}

type fakeRules struct {
	rules []*models.AutomationRule
}

func (f *fakeRules) ListActiveByAccount(context.Context, uuid.UUID) ([]*models.AutomationRule, error) {
	return f.rules, nil
}

type fakeLeads struct {
	leads   []*models.CapturedLead
	members map[string]*models.AudienceMember
	dmLogs  []*models.DMLog
	events  []*models.AnalyticsEvent
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{members: make(map[string]*models.AudienceMember)}
}

func (f *fakeLeads) CreateLead(_ context.Context, lead *models.CapturedLead) error {
	f.leads = append(f.leads, lead)
	return nil
}

func (f *fakeLeads) GetAudienceMember(_ context.Context, _ uuid.UUID, senderID string) (*models.AudienceMember, error) {
	m, ok := f.members[senderID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return m, nil
}

func (f *fakeLeads) UpsertAudienceMember(_ context.Context, m *models.AudienceMember) error {
	existing, ok := f.members[m.SenderID]
	if !ok {
		cp := *m
		f.members[m.SenderID] = &cp
		return nil
	}
	existing.IsFollowing = existing.IsFollowing || m.IsFollowing
	if m.Email != "" {
		existing.Email = m.Email
	}
	if m.Phone != "" {
		existing.Phone = m.Phone
	}
	return nil
}

func (f *fakeLeads) LogDM(_ context.Context, log *models.DMLog) error {
	f.dmLogs = append(f.dmLogs, log)
	return nil
}

func (f *fakeLeads) RecordEvent(_ context.Context, ev *models.AnalyticsEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeLeads) eventKinds() []string {
	kinds := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type fakeTiers struct {
	tier models.PlanTier
}

func (f *fakeTiers) TierForUser(context.Context, uuid.UUID) (models.PlanTier, error) {
	if f.tier == "" {
		return models.PlanFree, nil
	}
	return f.tier, nil
}

type fakeQuota struct {
	checkErr error
	recorded int
}

func (f *fakeQuota) CheckDMSend(context.Context, uuid.UUID, models.PlanTier) error {
	return f.checkErr
}

func (f *fakeQuota) RecordDM(context.Context, uuid.UUID) error {
	f.recorded++
	return nil
}

type sentDM struct {
	recipient string
	text      string
	button    string
}

type fakeAPI struct {
	dms            []sentDM
	privateReplies []sentDM
	commentReplies []sentDM
	dmErr          error
}

func (f *fakeAPI) SendDM(_ context.Context, _, _, recipientID, text string) (string, error) {
	if f.dmErr != nil {
		return "", f.dmErr
	}
	f.dms = append(f.dms, sentDM{recipient: recipientID, text: text})
	return "mid.1", nil
}

func (f *fakeAPI) SendDMWithButton(_ context.Context, _, _, recipientID, text, buttonTitle, _ string) (string, error) {
	if f.dmErr != nil {
		return "", f.dmErr
	}
	f.dms = append(f.dms, sentDM{recipient: recipientID, text: text, button: buttonTitle})
	return "mid.1", nil
}

func (f *fakeAPI) SendPrivateReply(_ context.Context, _, commentID, text string) (string, error) {
	f.privateReplies = append(f.privateReplies, sentDM{recipient: commentID, text: text})
	return "mid.2", nil
}

func (f *fakeAPI) ReplyToComment(_ context.Context, _, commentID, text string) error {
	f.commentReplies = append(f.commentReplies, sentDM{recipient: commentID, text: text})
	return nil
}

func (f *fakeAPI) GetMedia(context.Context, string, string) ([]instagram.Media, error) {
	return nil, nil
}

func (f *fakeAPI) GetStories(context.Context, string, string) ([]instagram.Media, error) {
	return nil, nil
}

func (f *fakeAPI) GetLiveMedia(context.Context, string, string) ([]instagram.Media, error) {
	return nil, nil
}

type testHarness struct {
	engine  *Engine
	api     *fakeAPI
	leads   *fakeLeads
	quota   *fakeQuota
	states  *flow.MemoryStore
	account *models.InstagramAccount
}

func newHarness(t *testing.T, rules ...*models.AutomationRule) *testHarness {
	t.Helper()
	account := &models.InstagramAccount{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		IGUserID: "17841400000000001",
		PageID:   "page-1",
		IsActive: true,
	}
	api := &fakeAPI{}
	leads := newFakeLeads()
	quota := &fakeQuota{}
	states := flow.NewMemoryStore()

	engine := NewEngine(Deps{
		Accounts: &fakeAccounts{account: account},
		Rules:    &fakeRules{rules: rules},
		Leads:    leads,
		Tiers:    &fakeTiers{tier: models.PlanPro},
		Quota:    quota,
		States:   states,
		API:      api,
	})
	return &testHarness{engine: engine, api: api, leads: leads, quota: quota, states: states, account: account}
}

func commentEvent(sender, text string) *models.InboundEvent {
	return &models.InboundEvent{
		Kind:      models.EventComment,
		AccountID: "17841400000000001",
		SenderID:  sender,
		CommentID: "c-" + sender + "-" + text,
		MediaID:   "media-1",
		Text:      text,
	}
}

func messageEvent(sender, text string) *models.InboundEvent {
	return &models.InboundEvent{
		Kind:      models.EventMessage,
		AccountID: "17841400000000001",
		SenderID:  sender,
		MID:       "mid-" + sender + "-" + text,
		Text:      text,
	}
}

func fullFlowRule() *models.AutomationRule {
	return &models.AutomationRule{
		ID:                uuid.New(),
		Name:              "lead magnet",
		Trigger:           models.TriggerPostComment,
		FollowMessage:     "Follow us first!",
		EmailMessage:      "Drop your email for the guide.",
		EmailRetryMessage: "That email did not look right, try again?",
		MessageVariations: []string{"Here is your guide: https://example.com/guide"},
		Config: models.RuleConfig{
			RequireFollow: true,
			RequireEmail:  true,
		},
		IsActive: true,
	}
}

func TestEngineCommentStartsFollowGate(t *testing.T) {
	rule := fullFlowRule()
	h := newHarness(t, rule)

	err := h.engine.HandleEvent(context.Background(), commentEvent("sender-1", "want this"))
	require.NoError(t, err)

	// Comment events answer through a private reply.
	require.Len(t, h.api.privateReplies, 1)
	assert.Equal(t, "Follow us first!", h.api.privateReplies[0].text)
	assert.Empty(t, h.api.dms)

	st, err := h.states.Get(context.Background(), flow.StateKey("sender-1", rule.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, flow.StepAwaitingFollow, st.Step)

	require.Len(t, h.leads.dmLogs, 1)
	assert.Equal(t, "follow_request", h.leads.dmLogs[0].Kind)
	assert.Equal(t, 1, h.quota.recorded)
}

func TestEngineFullFlowCapturesLead(t *testing.T) {
	rule := fullFlowRule()
	h := newHarness(t, rule)
	ctx := context.Background()

	require.NoError(t, h.engine.HandleEvent(ctx, commentEvent("sender-1", "want this")))
	require.NoError(t, h.engine.HandleEvent(ctx, messageEvent("sender-1", "done")))
	require.NoError(t, h.engine.HandleEvent(ctx, messageEvent("sender-1", "jane@example.com")))

	// follow request (private reply), then email request and primary as DMs.
	require.Len(t, h.api.privateReplies, 1)
	require.Len(t, h.api.dms, 2)
	assert.Equal(t, "Drop your email for the guide.", h.api.dms[0].text)
	assert.Equal(t, "Here is your guide: https://example.com/guide", h.api.dms[1].text)

	require.Len(t, h.leads.leads, 1)
	assert.Equal(t, "jane@example.com", h.leads.leads[0].Email)

	member := h.leads.members["sender-1"]
	require.NotNil(t, member)
	assert.True(t, member.IsFollowing)
	assert.Equal(t, "jane@example.com", member.Email)

	st, err := h.states.Get(ctx, flow.StateKey("sender-1", rule.ID.String()))
	require.NoError(t, err)
	assert.True(t, st.PrimaryDMSent)

	assert.Contains(t, h.leads.eventKinds(), "flow_completed")

	// The visitor already has the reward; further messages stay silent.
	require.NoError(t, h.engine.HandleEvent(ctx, messageEvent("sender-1", "thanks!")))
	assert.Len(t, h.api.dms, 2)
}

func TestEngineMidFlowMessageRoutesToOpenFlow(t *testing.T) {
	// A plain DM matches no trigger here, but the open flow claims it.
	rule := fullFlowRule()
	h := newHarness(t, rule)
	ctx := context.Background()

	require.NoError(t, h.engine.HandleEvent(ctx, commentEvent("sender-1", "want this")))
	require.NoError(t, h.engine.HandleEvent(ctx, messageEvent("sender-1", "followed")))

	require.Len(t, h.api.dms, 1)
	assert.Equal(t, "Drop your email for the guide.", h.api.dms[0].text)
}

func TestEngineDuplicateEventDropped(t *testing.T) {
	h := newHarness(t, fullFlowRule())
	ctx := context.Background()

	ev := commentEvent("sender-1", "want this")
	require.NoError(t, h.engine.HandleEvent(ctx, ev))
	require.NoError(t, h.engine.HandleEvent(ctx, ev))

	assert.Len(t, h.api.privateReplies, 1)
}

func TestEngineEchoIgnored(t *testing.T) {
	h := newHarness(t, fullFlowRule())

	ev := commentEvent(h.account.IGUserID, "our own comment")
	require.NoError(t, h.engine.HandleEvent(context.Background(), ev))
	assert.Empty(t, h.api.privateReplies)
	assert.Empty(t, h.api.dms)
}

func TestEngineUnknownAccountIgnored(t *testing.T) {
	h := newHarness(t, fullFlowRule())

	ev := commentEvent("sender-1", "want this")
	ev.AccountID = "other-account"
	require.NoError(t, h.engine.HandleEvent(context.Background(), ev))
	assert.Empty(t, h.api.privateReplies)
}

func TestEngineQuotaExhaustedDropsWithoutError(t *testing.T) {
	h := newHarness(t, fullFlowRule())
	h.quota.checkErr = &plans.LimitError{Limit: "dms", Current: 100, Max: 100, Tier: models.PlanFree}

	require.NoError(t, h.engine.HandleEvent(context.Background(), commentEvent("sender-1", "want this")))

	assert.Empty(t, h.api.privateReplies)
	assert.Contains(t, h.leads.eventKinds(), "limit_denied")
	assert.Equal(t, 0, h.quota.recorded)
}

func TestEngineVIPShortcut(t *testing.T) {
	rule := fullFlowRule()
	rule.Config.VIPShortcut = true
	h := newHarness(t, rule)
	ctx := context.Background()

	h.leads.members["sender-1"] = &models.AudienceMember{
		SenderID:    "sender-1",
		IsFollowing: true,
		Email:       "vip@example.com",
	}

	// A converted sender still gets this rule's opening follow ask.
	require.NoError(t, h.engine.HandleEvent(ctx, commentEvent("sender-1", "want this")))
	require.Len(t, h.api.privateReplies, 1)
	assert.Equal(t, "Follow us first!", h.api.privateReplies[0].text)
	assert.Empty(t, h.api.dms)

	// Once the follow request is out, the conversion record skips the
	// confirmation and email gates; no phrase or re-typed email needed.
	require.NoError(t, h.engine.HandleEvent(ctx, messageEvent("sender-1", "hey")))
	require.Len(t, h.api.dms, 1)
	assert.Equal(t, "Here is your guide: https://example.com/guide", h.api.dms[0].text)

	st, err := h.states.Get(ctx, flow.StateKey("sender-1", rule.ID.String()))
	require.NoError(t, err)
	assert.True(t, st.PrimaryDMSent)
}

func TestEngineAutoCommentReply(t *testing.T) {
	rule := fullFlowRule()
	rule.Config.AutoReplyToComments = true
	rule.CommentReplies = []string{"Check your DMs! 📩"}
	h := newHarness(t, rule)

	require.NoError(t, h.engine.HandleEvent(context.Background(), commentEvent("sender-1", "want this")))

	require.Len(t, h.api.commentReplies, 1)
	assert.Equal(t, "Check your DMs! 📩", h.api.commentReplies[0].text)
	require.Len(t, h.leads.dmLogs, 2)
	assert.Equal(t, "comment_reply", h.leads.dmLogs[1].Kind)
}

func TestEngineDelayDefersDelivery(t *testing.T) {
	rule := fullFlowRule()
	rule.DelayMinutes = 5
	h := newHarness(t, rule)

	var deferred []func()
	var delays []time.Duration
	h.engine.schedule = func(d time.Duration, fn func()) {
		delays = append(delays, d)
		deferred = append(deferred, fn)
	}

	require.NoError(t, h.engine.HandleEvent(context.Background(), commentEvent("sender-1", "want this")))
	assert.Empty(t, h.api.privateReplies, "nothing sent before the delay fires")
	require.Len(t, deferred, 1)
	assert.Equal(t, 5*time.Minute, delays[0])

	deferred[0]()
	assert.Len(t, h.api.privateReplies, 1)
}

func TestEngineDMWindowFallbackToPrivateReply(t *testing.T) {
	rule := fullFlowRule()
	rule.Config = models.RuleConfig{SimpleMode: true}
	h := newHarness(t, rule)
	h.api.dmErr = &instagram.GraphError{Message: "outside window", Code: 10, Subcode: 2534022}

	// A message event carrying a comment reference falls back to the
	// private reply channel when the 24 hour window has closed.
	ev := messageEvent("sender-1", "hello")
	ev.CommentID = "c-123"
	require.NoError(t, h.engine.HandleEvent(context.Background(), ev))

	assert.Empty(t, h.api.dms)
	require.Len(t, h.api.privateReplies, 1)
}
