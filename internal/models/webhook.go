// LeadFlow - Instagram Comment and DM Lead Generation Automation
// Copyright 2026 LeadFlow HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/leadflowhq/leadflow

package models

// Meta webhook payload types. The shapes follow the Instagram Messaging
// and comment webhook documentation; only the fields the engine consumes
// are modeled.

// MetaWebhook is the top-level webhook envelope delivered by Meta.
type MetaWebhook struct {
	Object string      `json:"object"` // "instagram" or "page"
	Entry  []MetaEntry `json:"entry"`
}

// MetaEntry is one per-account batch of events.
type MetaEntry struct {
	ID        string          `json:"id"` // IG account / page ID
	Time      int64           `json:"time"`
	Messaging []MessagingItem `json:"messaging,omitempty"`
	Changes   []ChangeItem    `json:"changes,omitempty"`
}

// MessagingItem is a DM, postback, or story reply event.
type MessagingItem struct {
	Sender    Participant  `json:"sender"`
	Recipient Participant  `json:"recipient"`
	Timestamp int64        `json:"timestamp"`
	Message   *MessageBody `json:"message,omitempty"`
	Postback  *Postback    `json:"postback,omitempty"`
}

// Participant identifies one side of a messaging event by IGSID.
type Participant struct {
	ID string `json:"id"`
}

// MessageBody is the inbound message content.
type MessageBody struct {
	MID     string      `json:"mid"`
	Text    string      `json:"text,omitempty"`
	IsEcho  bool        `json:"is_echo,omitempty"`
	ReplyTo *ReplyTo    `json:"reply_to,omitempty"`
	Quick   *QuickReply `json:"quick_reply,omitempty"`
}

// ReplyTo marks a message as a reply to a story.
type ReplyTo struct {
	Story *StoryRef `json:"story,omitempty"`
}

// StoryRef references the story a reply was sent against.
type StoryRef struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// QuickReply carries the payload of a tapped quick-reply button.
type QuickReply struct {
	Payload string `json:"payload"`
}

// Postback is a button tap event.
type Postback struct {
	MID     string `json:"mid"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// ChangeItem is a field-change event (comments, live comments).
type ChangeItem struct {
	Field string      `json:"field"` // "comments", "live_comments"
	Value CommentBody `json:"value"`
}

// CommentBody is a comment event payload.
type CommentBody struct {
	ID    string       `json:"id"`
	Text  string       `json:"text"`
	From  *Participant `json:"from,omitempty"`
	Media *MediaRef    `json:"media,omitempty"`
}

// MediaRef references the media a comment was posted under.
type MediaRef struct {
	ID               string `json:"id"`
	MediaProductType string `json:"media_product_type,omitempty"` // FEED, REELS, LIVE
}

// EventKind classifies a normalized inbound event.
type EventKind string

const (
	EventMessage    EventKind = "message"
	EventComment    EventKind = "comment"
	EventPostback   EventKind = "postback"
	EventStoryReply EventKind = "story_reply"
)

// InboundEvent is the normalized form of a single webhook event, the unit
// of work handed to the automation engine.
type InboundEvent struct {
	Kind      EventKind `json:"kind"`
	AccountID string    `json:"account_id"` // IG account / page ID from the entry
	SenderID  string    `json:"sender_id"`  // IGSID of the visitor
	Username  string    `json:"username,omitempty"`
	MID       string    `json:"mid,omitempty"`        // message ID for dedup
	CommentID string    `json:"comment_id,omitempty"` // set for comment events
	MediaID   string    `json:"media_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Payload   string    `json:"payload,omitempty"` // postback / quick-reply payload
	IsLive    bool      `json:"is_live,omitempty"` // comment on a live broadcast
	Timestamp int64     `json:"timestamp"`
}

// DedupKey returns the identifier used for duplicate suppression.
// Messages use the MID; comments use the comment ID.
func (e *InboundEvent) DedupKey() string {
	if e.MID != "" {
		return e.MID
	}
	return e.CommentID
}
