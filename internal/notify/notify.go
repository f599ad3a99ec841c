// Package notify renders reconciliation events into chat messages and
// delivers them over the platform's REST API. Each actionable message
// carries buttons whose custom ids round-trip through the interaction
// endpoint, so this package also owns the callback encoding.
package notify

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/driftwatch/driftwatch/internal/transport"
	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/bundle"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/detect"
	"github.com/driftwatch/driftwatch/pkg/logging"
)

// DefaultAPIURL is the chat platform's REST endpoint.
const DefaultAPIURL = "https://discord.com/api/v10"

// Notifier posts messages to the review channel. All sends pass through
// one rate limiter so a burst of candidates cannot trip the platform's
// flood control.
type Notifier struct {
	client  *transport.Client
	apiURL  string
	channel string
	roleID  string
	limiter *rate.Limiter
}

// createdMessage is the slice of the platform's message object we read
// back after posting.
type createdMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// messageEdit is the PATCH body for resolving a message. The fields
// marshal even when empty so an edit can clear buttons and content.
type messageEdit struct {
	Content    string      `json:"content"`
	Embeds     []Embed     `json:"embeds"`
	Components []Component `json:"components"`
}

// New creates a Notifier authenticating with the given bot token.
func New(token string, opts ...Option) *Notifier {
	n := &Notifier{
		apiURL:  DefaultAPIURL,
		limiter: rate.NewLimiter(rate.Limit(constants.NotifyRatePerSecond), constants.NotifyBurst),
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.client == nil {
		n.client = transport.New(&transport.BearerAuth{Prefix: "Bot"}, token)
	}

	return n
}

// Channel returns the default review channel id.
func (n *Notifier) Channel() string {
	return n.channel
}

// ActionRaised posts the review message for a freshly raised pending
// action and returns the message id, which the caller stores so the
// message can be edited once the action resolves.
func (n *Notifier) ActionRaised(ctx context.Context, act approval.PendingAction) (string, error) {
	var msg Message
	switch act.Kind {
	case detect.KindBundleFix:
		msg = n.bundleFixMessage(act)
	default:
		msg = n.priceMessage(act)
	}
	return n.send(ctx, n.channelFor(act.Channel), msg)
}

// ActionResolved rewrites the original review message so its buttons
// disappear and the outcome is visible in place. Actions without a
// recorded message are silently skipped.
func (n *Notifier) ActionResolved(ctx context.Context, act approval.PendingAction, outcome, actor string) error {
	if act.MessageRef == "" {
		return nil
	}

	line := fmt.Sprintf("%s by %s", outcome, actor)
	if actor == "" {
		line = outcome
	}
	edit := messageEdit{
		Embeds: []Embed{{
			Title:       act.Name,
			Description: line,
			Color:       colorResolved,
			Fields: []EmbedField{
				{Name: "Price", Value: dollars(act.Proposed), Inline: true},
			},
			Footer: &EmbedFooter{Text: string(act.Key)},
		}},
		Components: []Component{},
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	url := fmt.Sprintf("%s/channels/%s/messages/%s", n.apiURL, n.channelFor(act.Channel), act.MessageRef)
	if err := n.client.PatchJSON(ctx, url, edit, nil); err != nil {
		return fmt.Errorf("editing message %s: %w", act.MessageRef, err)
	}
	return nil
}

// BundleConfirmation asks a reviewer to confirm a detected bundle
// composition and returns the message id.
func (n *Notifier) BundleConfirmation(ctx context.Context, pc bundle.PendingConfirmation) (string, error) {
	names := make([]string, 0, len(pc.Constituents))
	for _, c := range pc.Constituents {
		names = append(names, c.Name)
	}

	msg := Message{
		Content: n.mention(),
		Embeds: []Embed{{
			Title:       pc.Name,
			Description: "Detected as a bundle. Confirm the composition to enable price verification.",
			Color:       colorBundle,
			Fields: []EmbedField{
				{Name: "Constituents", Value: strings.Join(names, "\n")},
			},
			Footer: &EmbedFooter{Text: fmt.Sprintf("product %d", pc.ProductID)},
		}},
		Components: actionRow(
			button(styleSuccess, "Confirm", KindBundleApprove, pc.ApprovalID),
			button(styleDanger, "Not a bundle", KindBundleDecline, pc.ApprovalID),
		),
	}
	return n.send(ctx, n.channel, msg)
}

// StockAlert announces an in-stock to out-of-stock transition. The
// snooze button carries the item key itself since there is no pending
// entry behind the alert.
func (n *Notifier) StockAlert(ctx context.Context, alert detect.StockAlert) error {
	msg := Message{
		Content: n.mention(),
		Embeds: []Embed{{
			Title:       alert.Name,
			Description: "Sold out on the storefront.",
			Color:       colorStock,
			Footer:      &EmbedFooter{Text: string(alert.Key)},
		}},
		Components: actionRow(
			button(styleSecondary, "Snooze 24h", KindStockSnooze, string(alert.Key)),
		),
	}
	_, err := n.send(ctx, n.channel, msg)
	return err
}

// MissingConstituents alarms that confirmed bundle members have left the
// storefront, which blocks verification of their bundles.
func (n *Notifier) MissingConstituents(ctx context.Context, missing []bundle.MissingConstituent) error {
	if len(missing) == 0 {
		return nil
	}

	lines := make([]string, 0, len(missing))
	for _, m := range missing {
		lines = append(lines, fmt.Sprintf("- %s is missing variant %d", m.BundleName, m.VariantID))
	}

	msg := Message{
		Embeds: []Embed{{
			Title:       "Bundle constituents missing",
			Description: strings.Join(lines, "\n"),
			Color:       colorStock,
		}},
	}
	_, err := n.send(ctx, n.channel, msg)
	return err
}

// Notices posts the plain-text catalog churn lines, packed a few per
// message. Failures abort the remaining chunks; each cycle rebuilds the
// lines from scratch anyway.
func (n *Notifier) Notices(ctx context.Context, res *detect.Result) error {
	var lines []string
	for _, nl := range res.NewListings {
		lines = append(lines, fmt.Sprintf("NEW %s at %s, suggested %s", nl.Name, dollars(nl.SourcePrice), dollars(nl.Recommended)))
	}
	for _, rl := range res.RemovedListings {
		lines = append(lines, fmt.Sprintf("REMOVED %s, last seen at %s", rl.Name, dollars(rl.LastPrice)))
	}

	for start := 0; start < len(lines); start += constants.NoticeLinesPerMessage {
		end := start + constants.NoticeLinesPerMessage
		if end > len(lines) {
			end = len(lines)
		}
		if err := n.PostText(ctx, n.channel, strings.Join(lines[start:end], "\n")); err != nil {
			return err
		}
	}
	return nil
}

// PostText sends a plain content message to the given channel. The
// gateway command responder uses this for its replies.
func (n *Notifier) PostText(ctx context.Context, channelID, content string) error {
	if len(content) > constants.MaxMessageLength {
		content = content[:constants.MaxMessageLength]
	}
	_, err := n.send(ctx, channelID, Message{Content: content})
	return err
}

func (n *Notifier) priceMessage(act approval.PendingAction) Message {
	headline := "Source price is below the current listing."
	color := colorLower
	if act.Kind == detect.KindPriceRaise {
		headline = "Source price has moved above the current listing."
		color = colorRaise
	}

	embed := Embed{
		Title:       act.Name,
		Description: headline,
		Color:       color,
		Fields: []EmbedField{
			{Name: "Current", Value: dollars(act.OperatorPrice), Inline: true},
			{Name: "Source", Value: dollars(act.SourcePrice), Inline: true},
			{Name: "Proposed", Value: dollars(act.Proposed), Inline: true},
		},
		Footer: &EmbedFooter{Text: string(act.Key)},
	}
	if act.ImageURL != "" {
		embed.Thumbnail = &EmbedImage{URL: act.ImageURL}
	}

	return Message{
		Content: n.mention(),
		Embeds:  []Embed{embed},
		Components: actionRow(
			button(styleSuccess, "Approve", KindPriceApprove, act.ID),
			button(styleDanger, "Decline", KindPriceDecline, act.ID),
		),
	}
}

func (n *Notifier) bundleFixMessage(act approval.PendingAction) Message {
	embed := Embed{
		Title:       act.Name,
		Description: "Bundle price no longer matches the sum of its constituents.",
		Color:       colorBundle,
		Fields: []EmbedField{
			{Name: "Current", Value: dollars(act.OperatorPrice), Inline: true},
			{Name: "Constituent sum", Value: dollars(act.Proposed), Inline: true},
		},
		Footer: &EmbedFooter{Text: string(act.Key)},
	}
	if act.ImageURL != "" {
		embed.Thumbnail = &EmbedImage{URL: act.ImageURL}
	}

	return Message{
		Content: n.mention(),
		Embeds:  []Embed{embed},
		Components: actionRow(
			button(styleSuccess, "Update price", KindBundleUpdate, act.ID),
			button(styleSecondary, "Ignore", KindBundleIgnore, act.ID),
		),
	}
}

// send posts a message and returns the created message id.
func (n *Notifier) send(ctx context.Context, channelID string, msg Message) (string, error) {
	if channelID == "" {
		return "", fmt.Errorf("posting notification: no channel configured")
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var created createdMessage
	url := fmt.Sprintf("%s/channels/%s/messages", n.apiURL, channelID)
	if err := n.client.PostJSON(ctx, url, msg, &created); err != nil {
		return "", fmt.Errorf("posting notification: %w", err)
	}

	logging.Debug().
		Str("channel", channelID).
		Str("message", created.ID).
		Msg("Notification posted")
	return created.ID, nil
}

// channelFor prefers the channel recorded on the action and falls back
// to the configured default.
func (n *Notifier) channelFor(channel string) string {
	if channel != "" {
		return channel
	}
	return n.channel
}

// mention renders the review role mention, or nothing when no role is
// configured.
func (n *Notifier) mention() string {
	if n.roleID == "" {
		return ""
	}
	return fmt.Sprintf("<@&%s>", n.roleID)
}

func dollars(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
