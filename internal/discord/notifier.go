package discord

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/filmbot/letterboxd-bot/internal/letterboxd"
)

// Sender is the subset of the discordgo session the notifier needs.
type Sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts formatted feed items to guild channels. It implements the
// scheduler's notification sink. Failed sends are logged by the scheduler and
// not retried here.
type Notifier struct {
	sender Sender
	log    *slog.Logger
}

// NewNotifier builds the notification sink on top of the bot's session.
func NewNotifier(sender Sender, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{sender: sender, log: log}
}

// Notify sends one message for the item.
func (n *Notifier) Notify(channelID, handle string, item letterboxd.Item) error {
	if _, err := n.sender.ChannelMessageSend(channelID, FormatItem(handle, item)); err != nil {
		return fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	return nil
}

// FormatItem renders one activity entry as a single chat line, e.g.
// "alice reviewed Dune (2021) ★★★★½ — https://letterboxd.com/...".
func FormatItem(handle string, item letterboxd.Item) string {
	author := item.Author
	if author == "" {
		author = handle
	}

	film := item.FilmTitle
	if film == "" {
		film = item.Title
	}
	if item.FilmYear != "" {
		film = fmt.Sprintf("%s (%s)", film, item.FilmYear)
	}

	var sb strings.Builder
	sb.WriteString(author)
	sb.WriteString(" ")
	sb.WriteString(verb(item.Type))
	sb.WriteString(" ")
	sb.WriteString(film)
	if s := stars(item.Rating); s != "" {
		sb.WriteString(" ")
		sb.WriteString(s)
	}
	if item.Link != "" {
		sb.WriteString(" — ")
		sb.WriteString(item.Link)
	}
	return sb.String()
}

func verb(t letterboxd.ItemType) string {
	switch t {
	case letterboxd.TypeReview:
		return "reviewed"
	case letterboxd.TypeRewatch:
		return "rewatched"
	default:
		return "watched"
	}
}

// stars renders a 0.5-5.0 member rating as unicode stars.
func stars(rating string) string {
	if rating == "" {
		return ""
	}
	v, err := strconv.ParseFloat(rating, 64)
	if err != nil || v <= 0 {
		return ""
	}

	full := int(v)
	out := strings.Repeat("★", full)
	if v-float64(full) >= 0.5 {
		out += "½"
	}
	return out
}
