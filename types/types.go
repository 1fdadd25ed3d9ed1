package types

import "time"

type ChainStatus string

const (
	ChainStatusPending   ChainStatus = "pending"
	ChainStatusConfirmed ChainStatus = "confirmed"
	ChainStatusFailed    ChainStatus = "failed"
)

type BindingStatus string

const (
	BindingValid       BindingStatus = "valid"
	BindingTransferred BindingStatus = "transferred"
	BindingUnowned     BindingStatus = "unowned"
)

// StoragePointer references a pinned content snapshot.
type StoragePointer struct {
	Cid        string `bson:"cid" json:"cid"`
	GatewayUrl string `bson:"gatewayUrl" json:"gatewayUrl"`
}

// Registration is the durable record of one content hash's notarization
// lifecycle. ContentHash is unique across all registrations. ChainStatus
// moves pending -> confirmed | failed and confirmed is terminal. BnsStatus
// starts valid and only the bns validator moves it to transferred/unowned;
// it never moves back to valid automatically.
type Registration struct {
	ContentHash    string      `bson:"contentHash" json:"contentHash"`
	AuthorWallet   string      `bson:"authorWallet" json:"authorWallet"`
	ChainStatus    ChainStatus `bson:"chainStatus" json:"chainStatus"`
	TxId           string      `bson:"txId,omitempty" json:"txId,omitempty"`
	BlockHeight    uint64      `bson:"blockHeight" json:"blockHeight"`
	RegistrationId uint64      `bson:"registrationId" json:"registrationId"`

	BnsName          string        `bson:"bnsName,omitempty" json:"bnsName,omitempty"`
	BnsStatus        BindingStatus `bson:"bnsStatus,omitempty" json:"bnsStatus,omitempty"`
	BnsCurrentOwner  string        `bson:"bnsCurrentOwner,omitempty" json:"bnsCurrentOwner,omitempty"`
	BnsTransferredAt *time.Time    `bson:"bnsTransferredAt,omitempty" json:"bnsTransferredAt,omitempty"`
	BnsLastValidated *time.Time    `bson:"bnsLastValidated,omitempty" json:"bnsLastValidated,omitempty"`

	ContentPreview string          `bson:"contentPreview,omitempty" json:"contentPreview,omitempty"`
	ContentType    string          `bson:"contentType,omitempty" json:"contentType,omitempty"`
	TweetUrl       string          `bson:"tweetUrl,omitempty" json:"tweetUrl,omitempty"`
	TwitterHandle  string          `bson:"twitterHandle,omitempty" json:"twitterHandle,omitempty"`
	Storage        *StoragePointer `bson:"storage,omitempty" json:"storage,omitempty"`

	ViewCount   int64 `bson:"viewCount" json:"viewCount"`
	VerifyCount int64 `bson:"verifyCount" json:"verifyCount"`

	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	RegisteredAt time.Time `bson:"registeredAt,omitempty" json:"registeredAt,omitempty"`
}

// CachedVerification is a memoized answer to "is this hash registered".
// At most one live entry exists per content hash; an expired entry must be
// treated as deleted even before the backend physically removes it.
type CachedVerification struct {
	ContentHash    string        `bson:"contentHash" json:"contentHash"`
	Verified       bool          `bson:"verified" json:"verified"`
	Author         string        `bson:"author,omitempty" json:"author,omitempty"`
	BnsName        string        `bson:"bnsName,omitempty" json:"bnsName,omitempty"`
	BnsStatus      BindingStatus `bson:"bnsStatus,omitempty" json:"bnsStatus,omitempty"`
	BlockHeight    uint64        `bson:"blockHeight" json:"blockHeight"`
	RegisteredAt   time.Time     `bson:"registeredAt,omitempty" json:"registeredAt,omitempty"`
	TxId           string        `bson:"txId,omitempty" json:"txId,omitempty"`
	RegistrationId uint64        `bson:"registrationId" json:"registrationId"`
	ExpiresAt      time.Time     `bson:"expiresAt" json:"expiresAt"`
}

func (c *CachedVerification) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Sound reports whether the entry carries every field the resolver needs.
// Corrupt entries are deleted rather than surfaced.
func (c *CachedVerification) Sound() bool {
	if c.ContentHash == "" || c.ExpiresAt.IsZero() {
		return false
	}
	if c.Verified && c.Author == "" {
		return false
	}
	return true
}

// VerificationData is the metadata block returned to api clients on a
// positive verification.
type VerificationData struct {
	Hash           string        `json:"hash"`
	Author         string        `json:"author"`
	BnsName        string        `json:"bnsName,omitempty"`
	BnsStatus      BindingStatus `json:"bnsStatus,omitempty"`
	RegisteredAt   time.Time     `json:"registeredAt"`
	BlockHeight    uint64        `json:"blockHeight"`
	RegistrationId uint64        `json:"registrationId"`
	TxId           string        `json:"txId,omitempty"`
	TweetUrl       string        `json:"tweetUrl,omitempty"`
	TwitterHandle  string        `json:"twitterHandle,omitempty"`
	// Degraded marks a chain answer whose detail fetch failed after the
	// existence check succeeded; author and height are fallback values.
	Degraded bool `json:"degraded,omitempty"`
}

// StoreStats summarizes the registration collection.
type StoreStats struct {
	TotalRegistrations int64 `json:"totalRegistrations"`
	Confirmed          int64 `json:"confirmed"`
	Pending            int64 `json:"pending"`
	Failed             int64 `json:"failed"`
	TotalVerifications int64 `json:"totalVerifications"`
}
