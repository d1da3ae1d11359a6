// Package notify carries the best-effort claim notification from the claim
// coordinator to the original reporter: a queue message published at claim
// time, and a worker that renders and mails it. Nothing in this package can
// affect a claim that has already committed.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/campusfind/apiserver/internal/mq"
	"github.com/campusfind/apiserver/types"
)

// Channel is the queue channel claim notices are published to and the
// worker consumes from.
const Channel = "claim-notifications"

const publishTimeout = 5 * time.Second

// ClaimNotice is the queued payload describing a successful claim. It
// snapshots everything the rendered message needs, so the worker never has
// to read the database.
type ClaimNotice struct {
	ClaimantName  string    `json:"claimant_name"`
	ClaimantEmail string    `json:"claimant_email"`
	ItemID        int       `json:"item_id"`
	ItemName      string    `json:"item_name"`
	Disposition   string    `json:"disposition"`
	Category      string    `json:"category"`
	Location      string    `json:"location"`
	OccurredOn    time.Time `json:"occurred_on"`
	ContactName   string    `json:"contact_name"`
	ContactEmail  string    `json:"contact_email"`
}

// NoticeFor builds the notice for a committed claim.
func NoticeFor(claimant types.User, item types.Item) ClaimNotice {
	return ClaimNotice{
		ClaimantName:  claimant.Name,
		ClaimantEmail: claimant.Email,
		ItemID:        item.ID,
		ItemName:      item.Name,
		Disposition:   item.Disposition,
		Category:      item.Category,
		Location:      item.Location,
		OccurredOn:    item.OccurredOn,
		ContactName:   item.ContactName,
		ContactEmail:  item.ContactEmail,
	}
}

// QueuePublisher hands claim notices to the message queue.
type QueuePublisher struct {
	queue *mq.MQ
}

func NewQueuePublisher(queue *mq.MQ) *QueuePublisher {
	return &QueuePublisher{queue: queue}
}

// PublishClaimNotice enqueues the notice with a bounded timeout. The caller
// treats any error as a soft failure; delivery is best-effort by contract.
func (p *QueuePublisher) PublishClaimNotice(ctx context.Context, notice ClaimNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	_, err = p.queue.Publish(ctx, Channel, data, map[string]string{
		"content-type": "application/json",
	})
	return err
}
