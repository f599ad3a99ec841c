package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/bundle"
	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/detect"
)

func TestDecodeCallback(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ActionKind
		id    string
	}{
		{"approve", "price_approve:abc-123", KindPriceApprove, "abc-123"},
		{"decline", "price_decline:abc-123", KindPriceDecline, "abc-123"},
		{"bundle update", "bundle_update:u1", KindBundleUpdate, "u1"},
		{"snooze keeps key separator", "stock_snooze:frost blade|standard", KindStockSnooze, "frost blade|standard"},
		{"snooze keeps extra colons", "stock_snooze:item: alpha|premium", KindStockSnooze, "item: alpha|premium"},
		{"unknown token", "left_over_kind:9", KindUnknown, "9"},
		{"no separator", "garbage", KindUnknown, "garbage"},
		{"empty", "", KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := DecodeCallback(tt.input)
			if cb.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", cb.Kind, tt.kind)
			}
			if cb.ID != tt.id {
				t.Errorf("id = %q, want %q", cb.ID, tt.id)
			}
		})
	}
}

func TestEncodeCallbackRoundTrip(t *testing.T) {
	encoded := EncodeCallback(KindBundleApprove, "pending-7")
	if encoded != "bundle_approve:pending-7" {
		t.Fatalf("encoded = %q", encoded)
	}

	cb := DecodeCallback(encoded)
	if cb.Kind != KindBundleApprove || cb.ID != "pending-7" {
		t.Errorf("round trip = %+v", cb)
	}
}

// capture records every message the notifier posts or edits.
type capture struct {
	method string
	path   string
	auth   string
	body   []byte
}

func newChatServer(t *testing.T, captured *[]capture) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*captured = append(*captured, capture{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"900","channel_id":"C1"}`))
	}))
}

func newTestNotifier(srvURL string, opts ...Option) *Notifier {
	base := []Option{
		WithAPIURL(srvURL),
		WithChannel("C1"),
		WithRateLimit(1000, 100),
	}
	return New("tok", append(base, opts...)...)
}

func priceAction(kind detect.Kind) approval.PendingAction {
	return approval.PendingAction{
		ID: "act-1",
		Candidate: detect.Candidate{
			Key:           catalog.Key("frost blade|standard"),
			Kind:          kind,
			Name:          "Frost Blade",
			OperatorPrice: 10.00,
			SourcePrice:   9.80,
			Proposed:      9.70,
			VariantID:     44100,
			ImageURL:      "https://img.example/frost.png",
		},
		RaisedAt: time.Now(),
	}
}

func TestActionRaisedPostsApproveDeclineButtons(t *testing.T) {
	var captured []capture
	srv := newChatServer(t, &captured)
	defer srv.Close()

	n := newTestNotifier(srv.URL, WithRoleID("R9"))

	ref, err := n.ActionRaised(context.Background(), priceAction(detect.KindPriceLower))
	if err != nil {
		t.Fatalf("ActionRaised() error = %v", err)
	}
	if ref != "900" {
		t.Errorf("message ref = %q, want 900", ref)
	}

	if len(captured) != 1 {
		t.Fatalf("requests = %d, want 1", len(captured))
	}
	req := captured[0]
	if req.method != http.MethodPost || req.path != "/channels/C1/messages" {
		t.Errorf("request = %s %s", req.method, req.path)
	}
	if req.auth != "Bot tok" {
		t.Errorf("Authorization = %q", req.auth)
	}

	var msg Message
	if err := json.Unmarshal(req.body, &msg); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if msg.Content != "<@&R9>" {
		t.Errorf("content = %q, want role mention", msg.Content)
	}
	if len(msg.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(msg.Embeds))
	}
	embed := msg.Embeds[0]
	if embed.Title != "Frost Blade" {
		t.Errorf("title = %q", embed.Title)
	}
	if embed.Thumbnail == nil || embed.Thumbnail.URL != "https://img.example/frost.png" {
		t.Errorf("thumbnail = %+v", embed.Thumbnail)
	}
	if embed.Footer == nil || embed.Footer.Text != "frost blade|standard" {
		t.Errorf("footer = %+v", embed.Footer)
	}

	if len(msg.Components) != 1 || len(msg.Components[0].Components) != 2 {
		t.Fatalf("components = %+v", msg.Components)
	}
	approve := msg.Components[0].Components[0]
	decline := msg.Components[0].Components[1]
	if approve.CustomID != "price_approve:act-1" || approve.Style != styleSuccess {
		t.Errorf("approve button = %+v", approve)
	}
	if decline.CustomID != "price_decline:act-1" || decline.Style != styleDanger {
		t.Errorf("decline button = %+v", decline)
	}
}

func TestActionRaisedBundleFixButtons(t *testing.T) {
	var captured []capture
	srv := newChatServer(t, &captured)
	defer srv.Close()

	n := newTestNotifier(srv.URL)

	if _, err := n.ActionRaised(context.Background(), priceAction(detect.KindBundleFix)); err != nil {
		t.Fatalf("ActionRaised() error = %v", err)
	}

	var msg Message
	if err := json.Unmarshal(captured[0].body, &msg); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	buttons := msg.Components[0].Components
	if buttons[0].CustomID != "bundle_update:act-1" || buttons[0].Label != "Update price" {
		t.Errorf("update button = %+v", buttons[0])
	}
	if buttons[1].CustomID != "bundle_ignore:act-1" || buttons[1].Style != styleSecondary {
		t.Errorf("ignore button = %+v", buttons[1])
	}
}

func TestActionResolvedEditsOriginalMessage(t *testing.T) {
	var captured []capture
	srv := newChatServer(t, &captured)
	defer srv.Close()

	n := newTestNotifier(srv.URL)

	act := priceAction(detect.KindPriceLower)
	act.MessageRef = "900"
	if err := n.ActionResolved(context.Background(), act, "Approved", "reviewer"); err != nil {
		t.Fatalf("ActionResolved() error = %v", err)
	}

	req := captured[0]
	if req.method != http.MethodPatch || req.path != "/channels/C1/messages/900" {
		t.Errorf("request = %s %s", req.method, req.path)
	}

	// The edit must clear the buttons, so components has to be present
	// and empty rather than omitted.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(req.body, &raw); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	components, ok := raw["components"]
	if !ok {
		t.Fatal("edit body omits components")
	}
	if string(components) != "[]" {
		t.Errorf("components = %s, want []", components)
	}

	var edit struct {
		Embeds []Embed `json:"embeds"`
	}
	if err := json.Unmarshal(req.body, &edit); err != nil {
		t.Fatalf("decoding embeds: %v", err)
	}
	if len(edit.Embeds) != 1 || edit.Embeds[0].Description != "Approved by reviewer" {
		t.Errorf("embeds = %+v", edit.Embeds)
	}
}

func TestActionResolvedWithoutMessageRefSkips(t *testing.T) {
	var captured []capture
	srv := newChatServer(t, &captured)
	defer srv.Close()

	n := newTestNotifier(srv.URL)

	if err := n.ActionResolved(context.Background(), priceAction(detect.KindPriceLower), "Declined", "reviewer"); err != nil {
		t.Fatalf("ActionResolved() error = %v", err)
	}
	if len(captured) != 0 {
		t.Errorf("requests = %d, want 0", len(captured))
	}
}

func TestStockAlertSnoozeCarriesItemKey(t *testing.T) {
	var captured []capture
	srv := newChatServer(t, &captured)
	defer srv.Close()

	n := newTestNotifier(srv.URL)

	alert := detect.StockAlert{
		Key:       catalog.Key("ember shield|premium"),
		Name:      "Ember Shield",
		VariantID: 3001,
	}
	if err := n.StockAlert(context.Background(), alert); err != nil {
		t.Fatalf("StockAlert() error = %v", err)
	}

	var msg Message
	if err := json.Unmarshal(captured[0].body, &msg); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	snooze := msg.Components[0].Components[0]
	if snooze.CustomID != "stock_snooze:ember shield|premium" {
		t.Errorf("custom id = %q", snooze.CustomID)
	}

	cb := DecodeCallback(snooze.CustomID)
	if cb.Kind != KindStockSnooze || cb.ID != "ember shield|premium" {
		t.Errorf("decoded = %+v", cb)
	}
}

func TestBundleConfirmationListsConstituents(t *testing.T) {
	var captured []capture
	srv := newChatServer(t, &captured)
	defer srv.Close()

	n := newTestNotifier(srv.URL)

	pc := bundle.PendingConfirmation{
		ApprovalID: "conf-1",
		ProductID:  8821,
		Name:       "Starter Set",
		Constituents: []bundle.Constituent{
			{Name: "Frost Blade", VariantID: 44100},
			{Name: "Ember Shield", VariantID: 44101},
		},
	}
	ref, err := n.BundleConfirmation(context.Background(), pc)
	if err != nil {
		t.Fatalf("BundleConfirmation() error = %v", err)
	}
	if ref != "900" {
		t.Errorf("ref = %q", ref)
	}

	var msg Message
	if err := json.Unmarshal(captured[0].body, &msg); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(msg.Embeds) != 1 || msg.Embeds[0].Fields[0].Value != "Frost Blade\nEmber Shield" {
		t.Errorf("embed = %+v", msg.Embeds)
	}
	buttons := msg.Components[0].Components
	if buttons[0].CustomID != "bundle_approve:conf-1" || buttons[1].CustomID != "bundle_decline:conf-1" {
		t.Errorf("buttons = %+v", buttons)
	}
}

func TestNoticesChunked(t *testing.T) {
	var captured []capture
	srv := newChatServer(t, &captured)
	defer srv.Close()

	n := newTestNotifier(srv.URL)

	res := &detect.Result{}
	for i := 0; i < 4; i++ {
		res.NewListings = append(res.NewListings, detect.NewListing{
			Key:         catalog.Key(string(rune('a'+i)) + "|standard"),
			Name:        "Item " + string(rune('A'+i)),
			SourcePrice: 5.00,
			Recommended: 4.95,
		})
	}
	for i := 0; i < 3; i++ {
		res.RemovedListings = append(res.RemovedListings, detect.RemovedListing{
			Key:       catalog.Key(string(rune('x'+i)) + "|standard"),
			Name:      "Gone " + string(rune('A'+i)),
			LastPrice: 2.00,
		})
	}

	if err := n.Notices(context.Background(), res); err != nil {
		t.Fatalf("Notices() error = %v", err)
	}

	if len(captured) != 2 {
		t.Fatalf("messages = %d, want 2", len(captured))
	}

	var first, second Message
	if err := json.Unmarshal(captured[0].body, &first); err != nil {
		t.Fatalf("decoding first: %v", err)
	}
	if err := json.Unmarshal(captured[1].body, &second); err != nil {
		t.Fatalf("decoding second: %v", err)
	}
	if got := len(strings.Split(first.Content, "\n")); got != 5 {
		t.Errorf("first chunk lines = %d, want 5", got)
	}
	if got := len(strings.Split(second.Content, "\n")); got != 2 {
		t.Errorf("second chunk lines = %d, want 2", got)
	}
	if !strings.HasPrefix(first.Content, "NEW Item A at $5.00") {
		t.Errorf("first line = %q", strings.Split(first.Content, "\n")[0])
	}
	if !strings.Contains(second.Content, "REMOVED Gone B, last seen at $2.00") {
		t.Errorf("second chunk = %q", second.Content)
	}
}

func TestNoticesEmptyResultPostsNothing(t *testing.T) {
	var captured []capture
	srv := newChatServer(t, &captured)
	defer srv.Close()

	n := newTestNotifier(srv.URL)

	if err := n.Notices(context.Background(), &detect.Result{}); err != nil {
		t.Fatalf("Notices() error = %v", err)
	}
	if len(captured) != 0 {
		t.Errorf("messages = %d, want 0", len(captured))
	}
}
