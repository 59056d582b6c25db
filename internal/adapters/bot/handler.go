package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/5Dev24/EqualBot/internal/adapters/discord"
	"github.com/5Dev24/EqualBot/internal/domain"
	"github.com/5Dev24/EqualBot/internal/infra/metrics"
	"github.com/5Dev24/EqualBot/internal/usecase/calendar"
	"github.com/5Dev24/EqualBot/internal/usecase/classify"
	"github.com/5Dev24/EqualBot/internal/usecase/escrow"
	"github.com/5Dev24/EqualBot/internal/usecase/leaderboard"
	"github.com/5Dev24/EqualBot/internal/usecase/ledger"
	"github.com/5Dev24/EqualBot/internal/usecase/reconcile"
)

const (
	colorRed   = 0xE74C3C
	colorGreen = 0x2ECC71
	colorBlue  = 0x206694
)

// chaosPostPrefix is the literal command prefix whose length fixes where the
// post body starts in the raw message text.
const chaosPostPrefix = "chaos post "

var months = []string{
	"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec",
	"january", "february", "march", "april", "may", "june", "july", "august", "september", "october", "november", "december",
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12",
}

var monthDisplay = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// parseMonth accepts a three-letter abbreviation, a full name or a 1..12
// numeral and returns the month number.
func parseMonth(input string) (int, bool) {
	for i, m := range months {
		if m == input {
			return i%12 + 1, true
		}
	}
	return 0, false
}

// Handler wires transport events to the classifier, ledger, escrow and
// calendar. A single mutex serializes every event end-to-end: the session
// dispatches concurrently, the core assumes one logical writer.
type Handler struct {
	session     *discordgo.Session
	gateway     domain.ChannelGateway
	log         zerolog.Logger
	calendar    *calendar.Service
	classifier  *classify.Classifier
	ledgerUC    *ledger.Service
	escrowUC    *escrow.Service
	boardUC     *leaderboard.Service
	reconcileUC *reconcile.Service
	state       domain.StateRepo
	equalRoleID string

	mu sync.Mutex
}

// NewHandler builds the orchestrator.
func NewHandler(
	session *discordgo.Session,
	gateway domain.ChannelGateway,
	logger zerolog.Logger,
	cal *calendar.Service,
	classifier *classify.Classifier,
	ledgerUC *ledger.Service,
	escrowUC *escrow.Service,
	boardUC *leaderboard.Service,
	reconcileUC *reconcile.Service,
	state domain.StateRepo,
	equalRoleID string,
) *Handler {
	return &Handler{
		session:     session,
		gateway:     gateway,
		log:         logger,
		calendar:    cal,
		classifier:  classifier,
		ledgerUC:    ledgerUC,
		escrowUC:    escrowUC,
		boardUC:     boardUC,
		reconcileUC: reconcileUC,
		state:       state,
		equalRoleID: equalRoleID,
	}
}

// Register attaches the handler to the session's event stream.
func (h *Handler) Register() {
	h.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		h.OnNewMessage(m.Message)
	})
	h.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		if m.Message != nil {
			h.OnEditedMessage(m.Message)
		}
	})
	h.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		h.OnMemberJoin(m)
	})
}

// Startup runs the observation-gap check, reconciles when needed and pushes
// a fresh leaderboard. A failed reconciliation pass is logged, not fatal:
// the next restart retries it.
func (h *Handler) Startup(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.log.Info().Msgf("invite: https://discord.com/api/oauth2/authorize?client_id=%s&permissions=8&scope=bot", h.gateway.BotUserID())
	if err := h.session.UpdateGameStatus(0, "God"); err != nil {
		h.log.Error().Err(err).Msg("could not set presence")
	}

	if err := h.reconcileUC.Startup(ctx); err != nil {
		h.log.Error().Err(err).Msg("historical reconciliation failed, will retry on next start")
	}
	h.boardUC.Refresh(ctx)
}

// OnNewMessage routes a fresh message: DMs are the command surface, guild
// messages go through classification.
func (h *Handler) OnNewMessage(raw *discordgo.Message) {
	h.handle(raw, false)
}

// OnEditedMessage re-runs classification on the post-edit content. An edit
// never earns a credit, but a rejected edit is deleted and debited since the
// pre-edit version may have been credited.
func (h *Handler) OnEditedMessage(raw *discordgo.Message) {
	h.handle(raw, true)
}

func (h *Handler) handle(raw *discordgo.Message, edited bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx := context.Background()

	if raw.GuildID == "" && !edited {
		if raw.Author == nil || raw.Author.ID != h.gateway.BotUserID() {
			h.handleCommand(ctx, raw)
		}
	} else {
		h.classifyAndApply(ctx, discord.ToDomain(raw), edited)
	}

	if err := h.state.SetLastSeen(ctx, time.Now().Unix()); err != nil {
		h.log.Error().Err(err).Msg("could not stamp last seen")
	}
}

func (h *Handler) classifyAndApply(ctx context.Context, msg domain.Message, edited bool) {
	decision := h.classifier.Classify(msg)
	metrics.IncClassification(decision.Verdict.String())

	if decision.ClearReactions {
		if err := h.gateway.ClearReactions(ctx, msg.ChannelID, msg.ID); err != nil {
			h.log.Error().Err(err).Str("message", msg.ID).Msg("could not clear reactions")
		}
	}

	switch decision.Verdict {
	case domain.VerdictAllow:
		if edited {
			return
		}
		if err := h.ledgerUC.Credit(ctx, msg.AuthorID, msg.AuthorName); err != nil {
			h.log.Error().Err(err).Str("user", msg.AuthorID).Msg("credit failed")
		}
	case domain.VerdictReject:
		if err := h.gateway.Delete(ctx, msg.ChannelID, msg.ID); err != nil {
			h.log.Error().Err(err).Str("message", msg.ID).Msg("could not delete rejected message")
		}
		if edited {
			if err := h.ledgerUC.Debit(ctx, msg.AuthorID, msg.AuthorName); err != nil {
				h.log.Error().Err(err).Str("user", msg.AuthorID).Msg("debit failed")
			}
		}
	}
}

// OnMemberJoin assigns the Equal role and nickname to a new member. A
// missing role degrades to a logged no-op.
func (h *Handler) OnMemberJoin(m *discordgo.GuildMemberAdd) {
	h.mu.Lock()
	defer h.mu.Unlock()

	roles, err := h.session.GuildRoles(m.GuildID)
	if err != nil {
		h.log.Error().Err(err).Str("guild", m.GuildID).Msg("could not list guild roles")
		return
	}
	found := false
	for _, r := range roles {
		if r.ID == h.equalRoleID {
			found = true
			break
		}
	}
	if !found {
		h.log.Error().Str("role", h.equalRoleID).Msg("equal role not found, new member left untouched")
		return
	}

	start := time.Now()
	_, err = h.session.GuildMemberEdit(m.GuildID, m.User.ID, &discordgo.GuildMemberParams{
		Nick:  "Equal",
		Roles: &[]string{h.equalRoleID},
	})
	metrics.ObserveNetworkRequest("discord", "member_edit", start, err)
	if err != nil {
		h.log.Error().Err(err).Str("user", m.User.ID).Msg("could not make member Equal")
	}

	if err := h.state.SetLastSeen(context.Background(), time.Now().Unix()); err != nil {
		h.log.Error().Err(err).Msg("could not stamp last seen")
	}
}

func (h *Handler) handleCommand(ctx context.Context, raw *discordgo.Message) {
	content := raw.ContentWithMentionsReplaced()
	fields := strings.Fields(strings.ToLower(strings.ReplaceAll(content, "\n", " ")))
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "bday":
		h.handleBday(ctx, raw, args)
	case "chaos":
		h.handleChaos(ctx, raw, content, args)
	}
}

func (h *Handler) handleBday(ctx context.Context, raw *discordgo.Message, args []string) {
	if len(args) != 2 {
		h.reply(raw, embed("bday Command", "Use `bday` **<**`month`**>** **<**`day`**>**", colorBlue,
			field("month", "The month can be a three letter abbreviation (Jan, Feb, Nov, or Dec), full names (April, August, September, or July), or a number (3, 5, 6, or 10)"),
			field("day", "The day must be a number (1 to 28/29/30/31)"),
		))
		return
	}

	month, ok := parseMonth(args[0])
	if !ok {
		h.reply(raw, embed("bday Command", "Invalid month", colorRed,
			field("month", fmt.Sprintf("The month can be a three letter abbreviation (Jan, Feb, Nov, or Dec), full names (April, August, September, or July), or a number (3, 5, 6, or 10)\n\nNot %q", args[0])),
		))
		return
	}

	day, err := strconv.Atoi(args[1])
	if err != nil {
		h.reply(raw, embed("bday Command", "Invalid day", colorRed,
			field("day", fmt.Sprintf("The day must be a number\n\nNot %q", args[1])),
		))
		return
	}

	change, err := h.calendar.SetBirthday(ctx, raw.Author.ID, month, day)
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		h.reply(raw, embed("bday Command", "Invalid "+validation.Field, colorRed,
			field(validation.Field, fmt.Sprintf("%s, %s isn't", strings.ToUpper(validation.Reason[:1])+validation.Reason[1:], args[1])),
		))
		return
	case err != nil:
		h.log.Error().Err(err).Str("user", raw.Author.ID).Msg("could not save birthday")
		h.reply(raw, embed("bday Command", "Could not save your birthday, try again later", colorRed))
		return
	}

	display := fmt.Sprintf("%s %d", monthDisplay[month-1], day)
	switch {
	case change.Unchanged:
		h.reply(raw, embed("bday Command", display+" is already your birthday!", colorRed))
	case change.Moved:
		h.reply(raw, embed("bday Command", "Birthday set!", colorGreen,
			field("Updated from", fmt.Sprintf("%s %d", monthDisplay[change.OldMonth-1], change.OldDay)),
			field("To", display),
		))
	default:
		h.reply(raw, embed("bday Command", "Birthday set!", colorGreen,
			field("Birthday set to", display),
		))
	}
}

func (h *Handler) handleChaos(ctx context.Context, raw *discordgo.Message, content string, args []string) {
	if len(args) == 0 {
		h.reply(raw, chaosUsageEmbed("chaos Command", "chaos subcommands:", colorBlue))
		return
	}

	switch args[0] {
	case "balance":
		balance, err := h.ledgerUC.SpendableBalance(ctx, raw.Author.ID)
		if err != nil {
			h.log.Error().Err(err).Str("user", raw.Author.ID).Msg("balance lookup failed")
			h.reply(raw, embed("chaos balance Command", "Could not read your balance, try again later", colorRed))
			return
		}
		h.reply(raw, embed("chaos balance Command", fmt.Sprintf("Your balance is %d", balance), colorGreen))

	case "post":
		body := ""
		if len(content) > len(chaosPostPrefix) {
			body = content[len(chaosPostPrefix):]
		}
		remaining, err := h.escrowUC.RequestPost(ctx, raw.Author.ID, body)
		if errors.Is(err, domain.ErrInsufficientFunds) {
			h.reply(raw, embed("chaos post Command", "Insufficient funds", colorRed,
				field("It costs 50 chaos points to make a chaotic post", fmt.Sprintf("Your balance is %d", remaining)),
			))
			return
		}
		if err != nil {
			h.log.Error().Err(err).Str("user", raw.Author.ID).Msg("post request failed")
			h.reply(raw, embed("chaos post Command", "Could not escrow your post, try again later", colorRed))
			return
		}
		h.reply(raw, embed("chaos post Command", "Confirm post", colorGreen,
			field(fmt.Sprintf("You'll have %d chaos point%s left, confirm post below", remaining, plural(remaining)), body),
			field("Use `chaos confirm` to make this post", "This will take 50 chaos points"),
			field("Use `chaos cancel` to cancel this post", "This will cancel this post"),
		))

	case "confirm":
		balance, err := h.escrowUC.Confirm(ctx, raw.Author.ID)
		switch {
		case errors.Is(err, domain.ErrNoPendingPost):
			h.reply(raw, embed("chaos confirm Command", "No post", colorBlue,
				field("You need to attempt to make a post before you can confirm one", "Use `chaos post <message>`"),
			))
		case errors.Is(err, domain.ErrInsufficientFunds):
			h.reply(raw, embed("chaos confirm Command", "Insufficient funds", colorRed,
				field("It costs 50 chaos points to make a chaotic post", fmt.Sprintf("Your balance is %d", balance)),
			))
		case errors.Is(err, domain.ErrChannelUnavailable):
			h.reply(raw, embed("chaos confirm Command", "Post failure", colorRed,
				field("Cannot post right now", "Unable to locate chaos text channel"),
			))
		case err != nil:
			h.log.Error().Err(err).Str("user", raw.Author.ID).Msg("post confirm failed")
			h.reply(raw, embed("chaos confirm Command", "Post failure", colorRed,
				field("Cannot post right now", "Try `chaos confirm` again in a moment"),
			))
		default:
			h.reply(raw, embed("chaos confirm Command", "Post confirmed", colorGreen))
		}

	case "cancel":
		if err := h.escrowUC.Cancel(raw.Author.ID); errors.Is(err, domain.ErrNoPendingPost) {
			h.reply(raw, embed("chaos cancel Command", "No post", colorBlue,
				field("You need to attempt to make a post before you can cancel one", "Use `chaos post <message>`"),
			))
			return
		}
		h.reply(raw, embed("chaos cancel Command", "Post cancelled", colorGreen))

	default:
		h.reply(raw, chaosUsageEmbed("chaos Command", "Invalid subcommand", colorRed))
	}
}

func (h *Handler) reply(to *discordgo.Message, e *discordgo.MessageEmbed) {
	start := time.Now()
	_, err := h.session.ChannelMessageSendComplex(to.ChannelID, &discordgo.MessageSend{
		Embed:           e,
		Reference:       to.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{RepliedUser: false},
	})
	metrics.ObserveNetworkRequest("discord", "send_reply", start, err)
	if err != nil {
		h.log.Error().Err(err).Str("channel", to.ChannelID).Msg("could not send reply")
	}
}

func embed(title, description string, color int, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
	}
}

func field(name, value string) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value}
}

func chaosUsageEmbed(title, description string, color int) *discordgo.MessageEmbed {
	return embed(title, description, color,
		field("balance", "Get your balance of chaos points"),
		field("post", "Send a chaotic message at the cost of 50 chaos points"),
		field("confirm", "Confirm to send a chaotic message"),
		field("cancel", "Cancel the posting of a chaotic message"),
	)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
