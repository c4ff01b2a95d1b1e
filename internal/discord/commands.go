package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/filmbot/letterboxd-bot/internal/domain"
)

const commandName = "letterboxd"

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        commandName,
		Description: "Track Letterboxd users in this server",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Start tracking a Letterboxd user",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "username",
						Description: "Letterboxd username or profile URL",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Stop tracking a Letterboxd user",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "username",
						Description: "Letterboxd username or profile URL",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List tracked Letterboxd users",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "channel",
				Description: "Choose the channel for activity notifications",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "Target channel",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "help",
				Description: "Show usage",
			},
		},
	},
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != commandName || len(data.Options) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	sub := data.Options[0]
	var reply string
	switch sub.Name {
	case "add":
		reply = b.handleAdd(ctx, i.GuildID, sub.Options[0].StringValue())
	case "remove":
		reply = b.handleRemove(ctx, i.GuildID, sub.Options[0].StringValue())
	case "list":
		reply = b.handleList(ctx, i.GuildID)
	case "channel":
		reply = b.handleChannel(ctx, i.GuildID, sub.Options[0].ChannelValue(nil).ID)
	case "help":
		reply = helpText
	default:
		reply = helpText
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: reply},
	})
	if err != nil {
		b.log.Error("failed to respond to interaction", "guild_id", i.GuildID,
			"command", sub.Name, "error", err)
	}
}

func (b *Bot) handleAdd(ctx context.Context, guildID, raw string) string {
	u, err := b.registry.Add(ctx, guildID, raw)
	switch {
	case errors.Is(err, domain.ErrInvalidHandle):
		return fmt.Sprintf("`%s` doesn't look like a Letterboxd username or profile URL.", raw)
	case errors.Is(err, domain.ErrUnknownUser):
		return fmt.Sprintf("Letterboxd has no member named `%s`.", raw)
	case err != nil:
		b.log.Error("add command failed", "guild_id", guildID, "input", raw, "error", err)
		return "Something went wrong, try again later."
	}
	return fmt.Sprintf("Now tracking **%s** — new diary entries will be posted here.", u.Handle)
}

func (b *Bot) handleRemove(ctx context.Context, guildID, raw string) string {
	removed, err := b.registry.Remove(ctx, guildID, raw)
	switch {
	case errors.Is(err, domain.ErrInvalidHandle):
		return fmt.Sprintf("`%s` doesn't look like a Letterboxd username or profile URL.", raw)
	case err != nil:
		b.log.Error("remove command failed", "guild_id", guildID, "input", raw, "error", err)
		return "Something went wrong, try again later."
	case !removed:
		return fmt.Sprintf("`%s` wasn't being tracked.", raw)
	}
	return fmt.Sprintf("Stopped tracking `%s`.", raw)
}

func (b *Bot) handleList(ctx context.Context, guildID string) string {
	users, err := b.registry.List(ctx, guildID)
	if err != nil {
		b.log.Error("list command failed", "guild_id", guildID, "error", err)
		return "Something went wrong, try again later."
	}
	if len(users) == 0 {
		return "No Letterboxd users tracked yet. Add one with `/letterboxd add`."
	}

	var sb strings.Builder
	sb.WriteString("Tracked Letterboxd users:\n")
	for _, u := range users {
		sb.WriteString("• ")
		sb.WriteString(u.Handle)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) handleChannel(ctx context.Context, guildID, channelID string) string {
	if err := b.guilds.SetChannel(ctx, guildID, channelID); err != nil {
		b.log.Error("channel command failed", "guild_id", guildID, "error", err)
		return "Something went wrong, try again later."
	}
	return fmt.Sprintf("Activity notifications will be posted in <#%s>.", channelID)
}

const helpText = "```\n" +
	"/letterboxd add <username>     track a Letterboxd user\n" +
	"/letterboxd remove <username>  stop tracking a user\n" +
	"/letterboxd list               show tracked users\n" +
	"/letterboxd channel <#channel> pick the notification channel\n" +
	"```"
