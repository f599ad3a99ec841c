package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/driftwatch/driftwatch/internal/notify"
	"github.com/driftwatch/driftwatch/internal/server/response"
	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
)

// Interaction and response type discriminators defined by the chat
// platform.
const (
	interactionPing      = 1
	interactionComponent = 3

	responsePong           = 1
	responseChannelMessage = 4
)

// flagEphemeral marks a response visible only to the clicking user.
const flagEphemeral = 64

// expiredReply answers callbacks whose entry no longer exists, including
// buttons from before a restart and redelivered clicks. Always a normal
// response, never an error status.
const expiredReply = "This action has expired or was already handled."

// interaction is the slice of the platform's callback payload we read.
type interaction struct {
	Type int `json:"type"`
	Data struct {
		CustomID string `json:"custom_id"`
	} `json:"data"`
	Member struct {
		Roles []string `json:"roles"`
		User  struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	} `json:"member"`
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	ChannelID string `json:"channel_id"`
}

// actor extracts who clicked. Guild payloads nest the user under member;
// direct-message payloads carry it at the top level with no roles.
func (in *interaction) actor() approval.Actor {
	a := approval.Actor{
		ID:    in.Member.User.ID,
		Name:  in.Member.User.Username,
		Roles: in.Member.Roles,
	}
	if a.ID == "" {
		a.ID = in.User.ID
		a.Name = in.User.Username
	}
	return a
}

type interactionResponse struct {
	Type int                      `json:"type"`
	Data *interactionResponseData `json:"data,omitempty"`
}

type interactionResponseData struct {
	Content string `json:"content"`
	Flags   int    `json:"flags"`
}

func ephemeral(content string) interactionResponse {
	return interactionResponse{
		Type: responseChannelMessage,
		Data: &interactionResponseData{Content: content, Flags: flagEphemeral},
	}
}

func writeInteraction(w http.ResponseWriter, resp interactionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleInteraction answers the platform's callback POST. The signature
// middleware has already verified the body by the time we get here.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.MethodNotAllowed(w, r.Method)
		return
	}

	var in interaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "malformed interaction payload", "")
		return
	}

	switch in.Type {
	case interactionPing:
		writeInteraction(w, interactionResponse{Type: responsePong})
	case interactionComponent:
		writeInteraction(w, ephemeral(s.dispatch(r.Context(), &in)))
	default:
		writeInteraction(w, ephemeral(expiredReply))
	}
}

// dispatch decodes the button callback and runs the workflow operation
// it names, returning the reviewer-visible reply. Refusals come back as
// replies too; a click never produces an error status.
func (s *Server) dispatch(ctx context.Context, in *interaction) string {
	cb := notify.DecodeCallback(in.Data.CustomID)
	actor := in.actor()

	logging.Ctx(ctx).Debug().
		Str("kind", string(cb.Kind)).
		Str("id", cb.ID).
		Str("actor", actor.ID).
		Msg("Interaction received")

	switch cb.Kind {
	case notify.KindPriceApprove:
		act, err := s.deps.Manager.Approve(ctx, cb.ID, actor)
		if err != nil {
			return s.refusal(err)
		}
		return fmt.Sprintf("Updated %s to %s.", act.Name, dollars(act.Proposed))

	case notify.KindPriceDecline:
		act, err := s.deps.Manager.Decline(ctx, cb.ID, actor)
		if err != nil {
			return s.refusal(err)
		}
		return fmt.Sprintf("Declined; %s stays at %s.", act.Name, dollars(act.OperatorPrice))

	case notify.KindBundleApprove:
		comp, err := s.deps.Bundles.Confirm(ctx, cb.ID, actor)
		if err != nil {
			return s.refusal(err)
		}
		s.deps.Metrics.IncActionResolved("bundle_confirmed")
		return fmt.Sprintf("Confirmed %s with %d constituents. Its price is verified from now on.", comp.Name, len(comp.VariantIDs))

	case notify.KindBundleDecline:
		pc, err := s.deps.Bundles.Decline(ctx, cb.ID, actor)
		if err != nil {
			return s.refusal(err)
		}
		s.deps.Metrics.IncActionResolved("bundle_declined")
		return fmt.Sprintf("Noted; %s will wait for a manually supplied composition.", pc.Name)

	case notify.KindBundleUpdate:
		act, err := s.deps.Manager.Approve(ctx, cb.ID, actor)
		if err != nil {
			return s.refusal(err)
		}
		return fmt.Sprintf("Updated %s to %s to match its constituents.", act.Name, dollars(act.Proposed))

	case notify.KindBundleIgnore:
		act, err := s.deps.Manager.Ignore(ctx, cb.ID, actor)
		if err != nil {
			return s.refusal(err)
		}
		return fmt.Sprintf("Ignored the mismatch on %s; it may be raised again.", act.Name)

	case notify.KindStockSnooze:
		until, err := s.deps.Manager.Snooze(ctx, catalog.Key(cb.ID), actor)
		if err != nil {
			return s.refusal(err)
		}
		s.deps.Metrics.IncActionResolved("snoozed")
		return fmt.Sprintf("Snoozed; stock alerts for this item are quiet until %s.", until.Format(constants.TimeFormatHuman))

	default:
		return expiredReply
	}
}

// refusal translates a workflow error into the reviewer-visible reply.
func (s *Server) refusal(err error) string {
	var belowFloor *errors.BelowFloorError
	switch {
	case errors.IsNotFound(err):
		return expiredReply
	case errors.IsForbidden(err):
		return "You are not allowed to resolve pricing actions."
	case stderrors.As(err, &belowFloor):
		return fmt.Sprintf("Proposed price %s is below the %s floor; the action stays pending.",
			dollars(belowFloor.Proposed), dollars(belowFloor.Floor))
	default:
		return "That did not work; the action is still pending. Try again shortly."
	}
}

func dollars(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
