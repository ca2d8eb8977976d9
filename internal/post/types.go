package post

import "time"

// ItemKind is the media kind of one content item.
type ItemKind string

const (
	KindPhoto     ItemKind = "photo"
	KindVideo     ItemKind = "video"
	KindAnimation ItemKind = "animation"
	KindVoice     ItemKind = "voice"
	KindDocument  ItemKind = "document"
	KindText      ItemKind = "text"
)

// ItemSource tags where an item came from.
type ItemSource string

const (
	SourceUser      ItemSource = "user_upload"
	SourceGenerated ItemSource = "generated"
)

// Item is one media or text unit. Immutable once created.
//
// FileID is an opaque content handle the delivery side can resolve
// (a Telegram file_id).
type Item struct {
	Kind     ItemKind   `json:"type"`
	FileID   string     `json:"file_id,omitempty"`
	UniqueID string     `json:"file_unique_id,omitempty"`
	Source   ItemSource `json:"source,omitempty"`
	Caption  string     `json:"caption,omitempty"`
}

// Albumable reports whether the item may be part of a media group.
// Telegram albums mix photos, videos and animations; voice and documents
// are delivered as separate messages.
func (it Item) Albumable() bool {
	switch it.Kind {
	case KindPhoto, KindVideo, KindAnimation:
		return true
	}
	return false
}

// Status is the lifecycle state of a post.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusScheduled  Status = "scheduled"
	StatusPublishing Status = "publishing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

// Post is a composed content unit ready for delivery or storage.
type Post struct {
	ID        int64
	UID       string // public identifier, used in logs and user-facing messages
	ChannelID int64  // destination channel
	OwnerChat int64  // chat of the user who created the post
	Items     []Item // arrival order, 0..n
	Text      string // primary body / caption, raw HTML
	Status    Status
	CreatedAt time.Time
}

// Scheduled is a Post plus deferred-delivery bookkeeping.
//
// Lifecycle: scheduled -> publishing (claimed) -> published | failed.
// publishing -> scheduled is the only backward transition, taken when a
// retryable failure leaves retries remaining (or on graceful shutdown).
type Scheduled struct {
	Post
	FireAt    time.Time
	Retries   int
	ClaimedAt time.Time
	LastError string
	Degraded  bool   // published, but a trailing payload failed
	Receipt   string // JSON receipt of delivered message ids
}
