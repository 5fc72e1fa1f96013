package discord

import (
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// interactionAPI is the part of *discordgo.Session a reply needs.
type interactionAPI interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// reply answers one slash command. The first message becomes the
// interaction response; anything sent after that, or after ack, goes out as
// a followup.
type reply struct {
	api interactionAPI
	i   *discordgo.InteractionCreate
	log zerolog.Logger

	mu    sync.Mutex
	acked bool
}

func newReply(api interactionAPI, i *discordgo.InteractionCreate, log zerolog.Logger) *reply {
	return &reply{api: api, i: i, log: log}
}

func (r *reply) guildID() string   { return r.i.GuildID }
func (r *reply) channelID() string { return r.i.ChannelID }
func (r *reply) user() *discordgo.User {
	return invoker(r.i)
}

func (r *reply) options() map[string]*discordgo.ApplicationCommandInteractionDataOption {
	return options(r.i.ApplicationCommandData().Options)
}

// ack tells Discord the answer is on its way. Use it before anything that can
// outlast the three second response window, like joining voice or yt-dlp.
func (r *reply) ack() error {
	return r.acknowledge(0)
}

// ackPrivate is ack for answers only the caller should see.
func (r *reply) ackPrivate() error {
	return r.acknowledge(discordgo.MessageFlagsEphemeral)
}

func (r *reply) acknowledge(flags discordgo.MessageFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.acked {
		return nil
	}
	err := r.api.InteractionRespond(r.i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
	if err != nil {
		r.log.Error().Err(err).Msg("failed to acknowledge interaction")
		return fmt.Errorf("failed to acknowledge interaction: %w", err)
	}
	r.acked = true
	return nil
}

// public shows embed to the whole channel.
func (r *reply) public(embed *discordgo.MessageEmbed) error {
	return r.send(&discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}})
}

// private shows embed only to the caller. After ack the first followup takes
// over the visibility of the deferred response instead.
func (r *reply) private(embed *discordgo.MessageEmbed) error {
	return r.send(&discordgo.InteractionResponseData{
		Flags:  discordgo.MessageFlagsEphemeral,
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

func (r *reply) text(content string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.send(data)
}

func (r *reply) file(name string, content io.Reader) error {
	return r.send(&discordgo.InteractionResponseData{
		Flags: discordgo.MessageFlagsEphemeral,
		Files: []*discordgo.File{{Name: name, ContentType: "text/plain", Reader: content}},
	})
}

func (r *reply) send(data *discordgo.InteractionResponseData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if !r.acked {
		err = r.api.InteractionRespond(r.i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		})
	} else {
		_, err = r.api.FollowupMessageCreate(r.i.Interaction, true, &discordgo.WebhookParams{
			Content: data.Content,
			Embeds:  data.Embeds,
			Files:   data.Files,
			Flags:   data.Flags,
		})
	}
	if err != nil {
		r.log.Error().Err(err).Bool("followup", r.acked).Msg("failed to send reply")
		return fmt.Errorf("failed to send reply: %w", err)
	}
	r.acked = true
	return nil
}
