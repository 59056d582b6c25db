package classify

import (
	"github.com/5Dev24/EqualBot/internal/domain"
)

const (
	plainPost     = "Equal"
	christmasPost = "Equal 🎄"
	birthdayPost  = "Equal 🎂"
)

// Calendar is the birthday lookup the classifier consults.
type Calendar interface {
	HasBirthday(month, day int) bool
}

// Decision is the classifier's full output for one message.
type Decision struct {
	Verdict domain.Verdict
	// ClearReactions asks the caller to strip the message's reactions. It is
	// cleanup, not a classification input: the verdict does not depend on it.
	ClearReactions bool
}

// Classifier decides whether a message is a valid post. It is the single
// source of truth for both live processing and historical reconciliation;
// identical inputs always yield identical verdicts.
type Classifier struct {
	botUserID      string
	equalChannelID string
	calendar       Calendar
}

// New builds a classifier bound to the bot identity and policed channel.
func New(botUserID, equalChannelID string, calendar Calendar) *Classifier {
	return &Classifier{botUserID: botUserID, equalChannelID: equalChannelID, calendar: calendar}
}

// Classify applies the content rule in order.
func (c *Classifier) Classify(msg domain.Message) Decision {
	if msg.AuthorID == c.botUserID || msg.ChannelID != c.equalChannelID {
		return Decision{Verdict: domain.VerdictIgnore}
	}
	if msg.IsReply && !msg.IsSystem {
		return Decision{Verdict: domain.VerdictReject}
	}
	if msg.Attachments > 0 {
		return Decision{Verdict: domain.VerdictReject}
	}

	d := Decision{ClearReactions: msg.Reactions > 0}

	switch msg.Content {
	case plainPost:
		d.Verdict = domain.VerdictAllow
	case christmasPost:
		if msg.CreatedAt.Month() == 12 && msg.CreatedAt.Day() == 25 {
			d.Verdict = domain.VerdictAllow
			break
		}
		d.Verdict = domain.VerdictReject
	case birthdayPost:
		if c.calendar.HasBirthday(int(msg.CreatedAt.Month()), msg.CreatedAt.Day()) {
			d.Verdict = domain.VerdictAllow
			break
		}
		d.Verdict = domain.VerdictReject
	default:
		d.Verdict = domain.VerdictReject
	}
	return d
}
