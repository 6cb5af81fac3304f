package ws

import (
	"context"
	"log"

	"presence-chat/internal/models"
)

// GroupMembers resolves the fanout scope for group events.
type GroupMembers interface {
	MemberIDs(ctx context.Context, groupID int) ([]int, error)
}

// Gateway is the seam between the CRUD layer and the hub. Handlers call
// it only after the entity is durably committed, so a recipient that
// re-reads the store sees at least what was pushed. The gateway trusts
// the committed entity's fields and performs no authorization; that is
// enforced upstream, before commit.
type Gateway struct {
	hub    *Hub
	groups GroupMembers
}

// NewGateway constructs a Gateway.
func NewGateway(hub *Hub, groups GroupMembers) *Gateway {
	return &Gateway{hub: hub, groups: groups}
}

// MessageCreated fans a newly committed message out to its recipients.
func (g *Gateway) MessageCreated(ctx context.Context, msg models.Message) {
	if msg.IsDirect() {
		g.hub.PushDirectMessage(msg)
		return
	}
	if msg.GroupID == nil {
		return
	}
	members, err := g.groups.MemberIDs(ctx, *msg.GroupID)
	if err != nil {
		// The message is committed; recipients recover it on next load.
		log.Printf("group fanout skipped for message %d: %v", msg.ID, err)
		return
	}
	g.hub.PushGroupMessage(msg, members)
}

// MessageReacted fans the updated message out to both parties.
func (g *Gateway) MessageReacted(ctx context.Context, msg models.Message) {
	g.hub.PushReaction(msg)
}

// MessageEdited fans the edited message out to the counterpart.
func (g *Gateway) MessageEdited(ctx context.Context, msg models.Message) {
	g.hub.PushEdit(msg)
}

// MessageDeleted notifies the counterpart of a committed deletion.
func (g *Gateway) MessageDeleted(ctx context.Context, msg models.Message) {
	if msg.ReceiverID == nil {
		return
	}
	g.hub.PushDelete(*msg.ReceiverID, msg.ID)
}
