// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package flow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/internal/models"
)

func testRule(cfg models.RuleConfig) *models.AutomationRule {
	return &models.AutomationRule{
		ID:      uuid.New(),
		Trigger: models.TriggerNewMessage,
		Config:  cfg,
	}
}

func textEvent(text string) *models.InboundEvent {
	return &models.InboundEvent{
		Kind:     models.EventMessage,
		SenderID: "sender-1",
		Text:     text,
	}
}

func TestDecideFirstContact(t *testing.T) {
	tests := []struct {
		name   string
		cfg    models.RuleConfig
		member *models.AudienceMember
		want   Action
	}{
		{
			name: "follow required starts with follow request",
			cfg:  models.RuleConfig{RequireFollow: true, RequireEmail: true},
			want: ActionSendFollowRequest,
		},
		{
			name: "email only starts with email request",
			cfg:  models.RuleConfig{RequireEmail: true},
			want: ActionSendEmailRequest,
		},
		{
			name: "no gates goes straight to primary",
			cfg:  models.RuleConfig{},
			want: ActionSendPrimary,
		},
		{
			name:   "converted member still gets the follow ask on first contact",
			cfg:    models.RuleConfig{RequireFollow: true, RequireEmail: true, VIPShortcut: true},
			member: &models.AudienceMember{IsFollowing: true, Email: "vip@example.com"},
			want:   ActionSendFollowRequest,
		},
		{
			name:   "converted member without shortcut still walks the flow",
			cfg:    models.RuleConfig{RequireFollow: true},
			member: &models.AudienceMember{IsFollowing: true, Email: "vip@example.com"},
			want:   ActionSendFollowRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(nil, textEvent("hello"), testRule(tt.cfg), tt.member)
			assert.Equal(t, tt.want, d.Action)
			require.NotNil(t, d.Next)
			if tt.want == ActionSendPrimary {
				assert.True(t, d.Next.PrimaryDMSent)
				assert.Equal(t, StepCompleted, d.Next.Step)
			}
		})
	}
}

func TestDecideVIPShortcut(t *testing.T) {
	rule := testRule(models.RuleConfig{RequireFollow: true, RequireEmail: true, VIPShortcut: true})
	vip := &models.AudienceMember{IsFollowing: true, Email: "vip@example.com"}

	start := Decide(nil, textEvent("hello"), rule, vip)
	require.Equal(t, ActionSendFollowRequest, start.Action)
	state := start.Next

	t.Run("converted member skips gates once the follow ask is out", func(t *testing.T) {
		d := Decide(state, textEvent("what is this"), rule, vip)
		assert.Equal(t, ActionSendPrimary, d.Action)
		require.NotNil(t, d.Next)
		assert.True(t, d.Next.FollowConfirmed)
		assert.True(t, d.Next.EmailReceived)
		assert.Equal(t, "vip@example.com", d.Next.Email)
		assert.True(t, d.Next.PrimaryDMSent)
	})

	t.Run("following member without email skips to the email ask", func(t *testing.T) {
		d := Decide(state, textEvent("what is this"), rule, &models.AudienceMember{IsFollowing: true})
		assert.Equal(t, ActionSendEmailRequest, d.Action)
		require.NotNil(t, d.Next)
		assert.True(t, d.Next.FollowConfirmed)
		assert.True(t, d.Next.EmailRequestSent)
	})

	t.Run("non-following member gets the normal re-ask", func(t *testing.T) {
		d := Decide(state, textEvent("what is this"), rule, &models.AudienceMember{Email: "vip@example.com"})
		assert.Equal(t, ActionSendFollowRequest, d.Action)
	})

	t.Run("converting on one rule does not skip another rule's opening ask", func(t *testing.T) {
		// The sender converted through a post rule; a story rule firing
		// later must still walk its own full sequence.
		storyRule := testRule(models.RuleConfig{RequireFollow: true, RequireEmail: true, VIPShortcut: true})
		storyRule.Trigger = models.TriggerStoryReply

		first := Decide(nil, textEvent("loved it"), storyRule, vip)
		assert.Equal(t, ActionSendFollowRequest, first.Action)
		require.NotNil(t, first.Next)
		assert.True(t, first.Next.FollowRequestSent)

		// Only after the story flow's own follow request does the
		// conversion record shortcut the rest.
		second := Decide(first.Next, textEvent("ok"), storyRule, vip)
		assert.Equal(t, ActionSendPrimary, second.Action)
	})
}

func TestDecideSimpleMode(t *testing.T) {
	rule := testRule(models.RuleConfig{SimpleMode: true, RequireFollow: true, RequireEmail: true})

	// Simple mode ignores every gate, including on repeat contact.
	d := Decide(nil, textEvent("hi"), rule, nil)
	assert.Equal(t, ActionSendPrimary, d.Action)

	d = Decide(d.Next, textEvent("hi again"), rule, nil)
	assert.Equal(t, ActionSendPrimary, d.Action)
}

func TestDecideAwaitingFollow(t *testing.T) {
	rule := testRule(models.RuleConfig{RequireFollow: true, RequireEmail: true})
	start := Decide(nil, textEvent("hello"), rule, nil)
	require.Equal(t, ActionSendFollowRequest, start.Action)
	state := start.Next

	t.Run("confirmation phrase advances to email", func(t *testing.T) {
		d := Decide(state, textEvent("done!"), rule, nil)
		assert.Equal(t, ActionSendEmailRequest, d.Action)
		require.NotNil(t, d.Next)
		assert.True(t, d.Next.FollowConfirmed)
		assert.True(t, d.Next.EmailRequestSent)
	})

	t.Run("follow button postback advances to email", func(t *testing.T) {
		ev := &models.InboundEvent{Kind: models.EventPostback, SenderID: "sender-1", Payload: FollowButtonPayload}
		d := Decide(state, ev, rule, nil)
		assert.Equal(t, ActionSendEmailRequest, d.Action)
		require.NotNil(t, d.Next)
		assert.True(t, d.Next.FollowButtonTapped)
	})

	t.Run("random text re-asks without strict mode", func(t *testing.T) {
		d := Decide(state, textEvent("what is this"), rule, nil)
		assert.Equal(t, ActionSendFollowRequest, d.Action)
		assert.Nil(t, d.Next)
	})

	t.Run("random text is dropped in strict mode", func(t *testing.T) {
		strictRule := testRule(models.RuleConfig{RequireFollow: true, RequireEmail: true, StrictMode: true})
		strictStart := Decide(nil, textEvent("hello"), strictRule, nil)
		d := Decide(strictStart.Next, textEvent("what is this"), strictRule, nil)
		assert.Equal(t, ActionIgnore, d.Action)
	})

	t.Run("confirmation without email gate completes the flow", func(t *testing.T) {
		followOnly := testRule(models.RuleConfig{RequireFollow: true})
		s := Decide(nil, textEvent("hello"), followOnly, nil)
		d := Decide(s.Next, textEvent("followed you"), followOnly, nil)
		assert.Equal(t, ActionSendPrimary, d.Action)
		require.NotNil(t, d.Next)
		assert.True(t, d.Next.PrimaryDMSent)
	})
}

func TestDecideAwaitingEmail(t *testing.T) {
	rule := testRule(models.RuleConfig{RequireEmail: true})
	start := Decide(nil, textEvent("hello"), rule, nil)
	require.Equal(t, ActionSendEmailRequest, start.Action)
	state := start.Next

	t.Run("valid email completes the flow", func(t *testing.T) {
		d := Decide(state, textEvent("sure, it's Jane.Doe@Example.COM thanks"), rule, nil)
		assert.Equal(t, ActionSendPrimary, d.Action)
		assert.Equal(t, "jane.doe@example.com", d.Email)
		require.NotNil(t, d.Next)
		assert.True(t, d.Next.EmailReceived)
		assert.True(t, d.Next.PrimaryDMSent)
	})

	t.Run("phone number counts as a capture", func(t *testing.T) {
		d := Decide(state, textEvent("+1 (415) 555-0134"), rule, nil)
		assert.Equal(t, ActionSendPrimary, d.Action)
		assert.Equal(t, "+14155550134", d.Phone)
	})

	t.Run("disposable email gets a retry", func(t *testing.T) {
		d := Decide(state, textEvent("spam@mailinator.com"), rule, nil)
		assert.Equal(t, ActionSendEmailRetry, d.Action)
		assert.Empty(t, d.Email)
	})

	t.Run("invalid text gets a retry", func(t *testing.T) {
		d := Decide(state, textEvent("no thanks"), rule, nil)
		assert.Equal(t, ActionSendEmailRetry, d.Action)
	})

	t.Run("late follow confirmation gets a reminder", func(t *testing.T) {
		d := Decide(state, textEvent("done"), rule, nil)
		assert.Equal(t, ActionSendReminder, d.Action)
	})
}

func TestDecideCompletedFlowStaysSilent(t *testing.T) {
	rule := testRule(models.RuleConfig{RequireEmail: true})
	start := Decide(nil, textEvent("hello"), rule, nil)
	done := Decide(start.Next, textEvent("me@example.com"), rule, nil)
	require.Equal(t, ActionSendPrimary, done.Action)

	d := Decide(done.Next, textEvent("hello again"), rule, nil)
	assert.Equal(t, ActionIgnore, d.Action)
	assert.Nil(t, d.Next)
}

func TestDecideFlowsAreIsolatedPerRule(t *testing.T) {
	// The same sender runs two rules; completing one must not leak into
	// the other. Decide only sees per-rule state, so a fresh rule starts
	// a fresh flow.
	ruleA := testRule(models.RuleConfig{RequireEmail: true})
	ruleB := testRule(models.RuleConfig{RequireFollow: true})

	a := Decide(nil, textEvent("hello"), ruleA, nil)
	require.Equal(t, ActionSendEmailRequest, a.Action)

	b := Decide(nil, textEvent("hello"), ruleB, nil)
	assert.Equal(t, ActionSendFollowRequest, b.Action)
	assert.NotEqual(t, a.Next.Key(), b.Next.Key())
}
