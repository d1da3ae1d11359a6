package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/campusfind/apiserver/internal/notify"
	"github.com/campusfind/apiserver/internal/store"
	"github.com/campusfind/apiserver/types"
)

// ErrUnknownUser is returned when a verified session maps to no current
// user record (the account was removed after the token was minted).
var ErrUnknownUser = errors.New("unknown user")

// NoticePublisher enqueues a claim notification for asynchronous delivery.
type NoticePublisher interface {
	PublishClaimNotice(ctx context.Context, notice notify.ClaimNotice) error
}

// ClaimResult is the authoritative outcome of a successful claim.
type ClaimResult struct {
	// Item is the updated record, claimant resolved.
	Item types.Item
	// NotificationQueued is false when the notice could not be handed to
	// the queue. The claim itself has committed either way.
	NotificationQueued bool
}

// ClaimService coordinates the unclaimed→claimed transition. It is the only
// writer of claim state: the transition happens through one conditional
// update in the item repository, so concurrent claims on the same item
// resolve to exactly one winner regardless of request interleaving.
type ClaimService struct {
	items     ItemRepository
	users     UserRepository
	publisher NoticePublisher
	logger    *slog.Logger
}

func NewClaimService(items ItemRepository, users UserRepository, publisher NoticePublisher, logger *slog.Logger) *ClaimService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimService{items: items, users: users, publisher: publisher, logger: logger}
}

// Claim marks the item as claimed by claimantID.
//
// Fails with ErrUnknownUser if the claimant no longer resolves to a user,
// store.ErrNotFound if the item does not exist, and store.ErrAlreadyClaimed
// if another claim (or an earlier one by the same user) already won.
// Claiming one's own report is allowed.
func (s *ClaimService) Claim(ctx context.Context, itemID, claimantID int) (ClaimResult, error) {
	claimant, err := s.users.GetByID(ctx, claimantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ClaimResult{}, ErrUnknownUser
		}
		return ClaimResult{}, err
	}

	item, err := s.items.TryClaim(ctx, itemID, claimant.ID)
	if err != nil {
		return ClaimResult{}, err
	}

	result := ClaimResult{Item: item, NotificationQueued: true}

	// The claim is committed. Notification failure is logged and reported
	// as a soft warning, never as an operation failure.
	if err := s.publisher.PublishClaimNotice(ctx, notify.NoticeFor(claimant, item)); err != nil {
		s.logger.Warn("failed to queue claim notification",
			"item_id", item.ID, "claimant_id", claimant.ID, "error", err)
		result.NotificationQueued = false
	}

	return result, nil
}
