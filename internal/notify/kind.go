package notify

import (
	"fmt"
	"strings"
)

// ActionKind identifies which operation a reviewer button triggers.
type ActionKind string

const (
	// KindUnknown is returned for callbacks this build does not recognize,
	// typically buttons raised by an older process.
	KindUnknown ActionKind = ""

	// KindPriceApprove applies a pending price proposal.
	KindPriceApprove ActionKind = "price_approve"

	// KindPriceDecline rejects a pending price proposal and suppresses
	// its key.
	KindPriceDecline ActionKind = "price_decline"

	// KindBundleApprove confirms a detected bundle composition.
	KindBundleApprove ActionKind = "bundle_approve"

	// KindBundleDecline rejects a detected bundle composition.
	KindBundleDecline ActionKind = "bundle_decline"

	// KindBundleUpdate applies a pending bundle price fix.
	KindBundleUpdate ActionKind = "bundle_update"

	// KindBundleIgnore drops a pending bundle price fix without
	// suppressing its key.
	KindBundleIgnore ActionKind = "bundle_ignore"

	// KindStockSnooze quiets stock alerts for an item key.
	KindStockSnooze ActionKind = "stock_snooze"
)

// Callback is a decoded button identifier. For most kinds ID is a pending
// entry id; for KindStockSnooze it is the item key itself.
type Callback struct {
	Kind ActionKind
	ID   string
}

// EncodeCallback builds the custom id embedded in a button.
func EncodeCallback(kind ActionKind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// DecodeCallback parses a button custom id. Only the first separator
// splits, so ids containing further colons survive intact. Unrecognized
// or malformed input decodes to KindUnknown rather than an error: the
// caller answers those as already handled.
func DecodeCallback(s string) Callback {
	token, id, found := strings.Cut(s, ":")
	if !found {
		return Callback{Kind: KindUnknown, ID: s}
	}

	kind := ActionKind(token)
	switch kind {
	case KindPriceApprove, KindPriceDecline,
		KindBundleApprove, KindBundleDecline,
		KindBundleUpdate, KindBundleIgnore,
		KindStockSnooze:
		return Callback{Kind: kind, ID: id}
	}
	return Callback{Kind: KindUnknown, ID: id}
}
