package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/5Dev24/EqualBot/internal/domain"
	"github.com/5Dev24/EqualBot/internal/infra/metrics"
)

const historyPageSize = 100

// Gateway implements domain.ChannelGateway over a discordgo session.
type Gateway struct {
	session *discordgo.Session
	log     zerolog.Logger
}

var _ domain.ChannelGateway = (*Gateway)(nil)

// NewGateway wraps an opened session.
func NewGateway(session *discordgo.Session, logger zerolog.Logger) *Gateway {
	return &Gateway{session: session, log: logger}
}

// BotUserID returns the bot's own user id.
func (g *Gateway) BotUserID() string {
	if g.session.State != nil && g.session.State.User != nil {
		return g.session.State.User.ID
	}
	return ""
}

// resolveChannel mirrors the cache-then-API channel lookup; a miss is
// ErrChannelUnavailable.
func (g *Gateway) resolveChannel(channelID string) error {
	if channelID == "" {
		return domain.ErrChannelUnavailable
	}
	if _, err := g.session.State.Channel(channelID); err == nil {
		return nil
	}
	start := time.Now()
	_, err := g.session.Channel(channelID)
	metrics.ObserveNetworkRequest("discord", "channel_lookup", start, err)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrChannelUnavailable, channelID)
	}
	return nil
}

// History replays the channel's full message history oldest-first. Pages are
// fetched newest-first, so the whole history is collected before replay.
func (g *Gateway) History(ctx context.Context, channelID string, fn func(domain.Message) error) error {
	if err := g.resolveChannel(channelID); err != nil {
		return err
	}

	var all []*discordgo.Message
	beforeID := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		page, err := g.session.ChannelMessages(channelID, historyPageSize, beforeID, "", "")
		metrics.ObserveNetworkRequest("discord", "history_page", start, err)
		if err != nil {
			return fmt.Errorf("fetch history page: %w", err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		beforeID = page[len(page)-1].ID
	}

	for i := len(all) - 1; i >= 0; i-- {
		if err := fn(ToDomain(all[i])); err != nil {
			return err
		}
	}
	return nil
}

// Send posts content to a channel.
func (g *Gateway) Send(ctx context.Context, channelID, content string) error {
	if err := g.resolveChannel(channelID); err != nil {
		return err
	}
	start := time.Now()
	_, err := g.session.ChannelMessageSend(channelID, content)
	metrics.ObserveNetworkRequest("discord", "send_message", start, err)
	return err
}

// Edit rewrites an existing message.
func (g *Gateway) Edit(ctx context.Context, channelID, messageID, content string) error {
	if err := g.resolveChannel(channelID); err != nil {
		return err
	}
	start := time.Now()
	_, err := g.session.ChannelMessageEdit(channelID, messageID, content)
	metrics.ObserveNetworkRequest("discord", "edit_message", start, err)
	return err
}

// Delete removes a message.
func (g *Gateway) Delete(ctx context.Context, channelID, messageID string) error {
	start := time.Now()
	err := g.session.ChannelMessageDelete(channelID, messageID)
	metrics.ObserveNetworkRequest("discord", "delete_message", start, err)
	return err
}

// ClearReactions strips every reaction from a message.
func (g *Gateway) ClearReactions(ctx context.Context, channelID, messageID string) error {
	start := time.Now()
	err := g.session.MessageReactionsRemoveAll(channelID, messageID)
	metrics.ObserveNetworkRequest("discord", "clear_reactions", start, err)
	return err
}

// ToDomain converts a discordgo message to the transport-independent view
// the classifier consumes.
func ToDomain(m *discordgo.Message) domain.Message {
	msg := domain.Message{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		Content:     m.ContentWithMentionsReplaced(),
		Attachments: len(m.Attachments),
		Reactions:   len(m.Reactions),
		IsReply:     m.MessageReference != nil,
		IsSystem:    m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply,
		CreatedAt:   m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
	}
	return msg
}
