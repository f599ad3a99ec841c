package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
)

// maxPendingLines caps the !pending listing so the reply stays inside
// the platform's message length limit.
const maxPendingLines = 15

// messageCreate is the slice of the dispatch payload the command
// handler reads.
type messageCreate struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Bot      bool   `json:"bot"`
	} `json:"author"`
	Member struct {
		Roles []string `json:"roles"`
	} `json:"member"`
}

// handleMessage filters a MESSAGE_CREATE event down to admin commands
// and posts the reply, if any.
func (g *Gateway) handleMessage(ctx context.Context, raw json.RawMessage) {
	var msg messageCreate
	if err := json.Unmarshal(raw, &msg); err != nil {
		logging.Debug().Err(err).Msg("Discarding malformed message event")
		return
	}
	if msg.Author.Bot || !strings.HasPrefix(msg.Content, "!") {
		return
	}
	if g.adminID == "" || msg.Author.ID != g.adminID {
		logging.Debug().
			Str("user_id", msg.Author.ID).
			Str("content", msg.Content).
			Msg("Ignoring command from non-admin")
		return
	}

	reply := g.runCommand(ctx, &msg)
	if reply == "" {
		return
	}
	if g.responder == nil {
		return
	}
	if err := g.responder.PostText(ctx, msg.ChannelID, reply); err != nil {
		logging.Warn().Err(err).Msg("Failed to post command reply")
	}
}

// runCommand executes one admin command and returns the reply text.
// Unknown commands are ignored silently so the bot stays quiet in
// channels it shares with other bots.
func (g *Gateway) runCommand(ctx context.Context, msg *messageCreate) string {
	fields := strings.Fields(msg.Content)
	if len(fields) == 0 {
		return ""
	}
	actor := approval.Actor{
		ID:    msg.Author.ID,
		Name:  msg.Author.Username,
		Roles: msg.Member.Roles,
	}

	logging.Ctx(ctx).Info().
		Str("command", fields[0]).
		Str("user", msg.Author.Username).
		Msg("Admin command received")

	switch fields[0] {
	case "!approveall":
		res, err := g.manager.ApproveAll(ctx, "", actor)
		if err != nil {
			return "You are not allowed to do that."
		}
		if res.Failed > 0 {
			return fmt.Sprintf("Approved %d pending actions; %d could not be applied and stay pending.", res.Resolved, res.Failed)
		}
		return fmt.Sprintf("Approved %d pending actions.", res.Resolved)

	case "!declineall":
		res, err := g.manager.DeclineAll(ctx, "", actor)
		if err != nil {
			return "You are not allowed to do that."
		}
		return fmt.Sprintf("Declined %d pending actions; their items are suppressed for a day.", res.Resolved)

	case "!pending":
		return g.pendingSummary()

	case "!resetbundle":
		if len(fields) < 2 {
			return "Usage: !resetbundle <product-id>"
		}
		productID, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return "Usage: !resetbundle <product-id>"
		}
		if err := g.bundles.Reset(ctx, productID); err != nil {
			if errors.IsNotFound(err) {
				return fmt.Sprintf("No bundle state for product %d.", productID)
			}
			return "Reset failed; check the logs."
		}
		return fmt.Sprintf("Bundle state for product %d cleared; it will be re-detected next cycle.", productID)
	}
	return ""
}

func (g *Gateway) pendingSummary() string {
	acts := g.manager.Pending("")
	if len(acts) == 0 {
		return "Nothing pending."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d pending:\n", len(acts))
	for i, act := range acts {
		if i == maxPendingLines {
			fmt.Fprintf(&b, "and %d more", len(acts)-i)
			break
		}
		fmt.Fprintf(&b, "- %s $%.2f to $%.2f (%s)\n", act.Name, act.OperatorPrice, act.Proposed, act.Kind)
	}
	return strings.TrimRight(b.String(), "\n")
}
