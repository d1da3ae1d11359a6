package types

import "time"

// Item dispositions. A "Lost" item was reported missing by its owner;
// a "Found" item was handed in by a finder.
const (
	DispositionLost  = "Lost"
	DispositionFound = "Found"
)

// Item represents a single lost-or-found report.
type Item struct {
	// ID is the unique identifier of the item.
	ID int `json:"id" db:"id"`

	// UserID references the user who filed the report.
	UserID int `json:"user_id" db:"user_id"`

	// Disposition is either "Lost" or "Found".
	Disposition string `json:"disposition" db:"disposition"`

	// Name is the short name of the item (e.g. "Black umbrella").
	Name string `json:"name" db:"name"`

	// Category is the item category used for browsing and filtering.
	Category string `json:"category" db:"category"`

	// Description is the free-text description of the item.
	Description string `json:"description" db:"description"`

	// Location is where the item was lost or found.
	Location string `json:"location" db:"location"`

	// OccurredOn is the date the item was lost or found.
	OccurredOn time.Time `json:"occurred_on" db:"occurred_on"`

	// Contact fields are captured at report time and may differ from the
	// reporting user's account details.
	ContactName  string `json:"contact_name" db:"contact_name"`
	ContactEmail string `json:"contact_email" db:"contact_email"`
	ContactPhone string `json:"contact_phone" db:"contact_phone"`

	// RewardOffer is an optional note about a reward for the item's return.
	RewardOffer string `json:"reward_offer,omitempty" db:"reward_offer"`

	// Department is the campus department or jurisdiction tag.
	Department string `json:"department" db:"department"`

	// Image references the uploaded photo of the item. An item is never
	// persisted without a resolved image.
	Image ItemImage `json:"image" db:"image"`

	// Claimed reports whether the item has been claimed. True if and only
	// if ClaimedBy is set; once true it never transitions back.
	Claimed bool `json:"claimed" db:"claimed"`

	// ClaimedBy references the user who claimed the item, nil while the
	// item is unclaimed.
	ClaimedBy *int `json:"claimed_by" db:"claimed_by"`

	// Reporter and Claimant are the resolved public identities of UserID
	// and ClaimedBy, populated by list and claim responses.
	Reporter *PublicUser `json:"reporter,omitempty" db:"-"`
	Claimant *PublicUser `json:"claimant,omitempty" db:"-"`

	// CreatedAt is the timestamp at which the report was filed.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the report.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ItemImage references an ingested image: the public URL served to clients
// and the object key in the backing store.
type ItemImage struct {
	URL       string `json:"url" db:"image_url"`
	ObjectKey string `json:"object_key" db:"image_key"`
}

// ValidDisposition reports whether s is a recognized disposition.
func ValidDisposition(s string) bool {
	return s == DispositionLost || s == DispositionFound
}
