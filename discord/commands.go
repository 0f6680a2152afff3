package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/korjavin/intakebot/admin"
	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/models"
	"github.com/korjavin/intakebot/platform"
)

// command pairs a slash command definition with its handler. Commands with
// run get a deferred ephemeral reply that run's embed replaces. Commands
// with respond answer the interaction themselves, for modals and public posts.
type command struct {
	def       *discordgo.ApplicationCommand
	guildOnly bool
	run       func(b *Bot, ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error)
	respond   func(b *Bot, ctx context.Context, i *discordgo.InteractionCreate, opts options)
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (o options) str(name string) string {
	if v, ok := o[name]; ok {
		return strings.TrimSpace(v.StringValue())
	}
	return ""
}

func (o options) integer(name string) int {
	if v, ok := o[name]; ok {
		return int(v.IntValue())
	}
	return 0
}

// id returns the raw snowflake of a channel or role option
func (o options) id(name string) string {
	if v, ok := o[name]; ok {
		if s, ok := v.Value.(string); ok {
			return s
		}
	}
	return ""
}

var (
	adminPermission int64 = discordgo.PermissionAdministrator
	minCooldown           = 0.0
	minQuestion           = 1.0
)

func categoryOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "category",
		Description: description,
		Required:    true,
		MaxLength:   80,
	}
}

func roleOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionRole,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

var commands = []command{
	{
		def: &discordgo.ApplicationCommand{
			Name:        "help",
			Description: "Show what the bot can do",
		},
		run: (*Bot).cmdHelp,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:                     "setup",
			Description:              "Set up the application system for this server",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "log_channel",
					Description:  "Channel where submitted applications are posted",
					Required:     true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
				roleOption("admin_role", "Role allowed to manage and review applications", true),
			},
		},
		guildOnly: true,
		run:       (*Bot).cmdSetup,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "panel",
			Description: "Post the application panel",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "Channel to post the panel in (defaults to this one)",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			}},
		},
		guildOnly: true,
		respond:   (*Bot).cmdPanel,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "addcategory",
			Description: "Add an application category",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Category name",
					Required:    true,
					MaxLength:   80,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "description",
					Description: "Shown on the panel",
					Required:    true,
					MaxLength:   200,
				},
				roleOption("role1", "Role granted on acceptance", false),
				roleOption("role2", "Role granted on acceptance", false),
				roleOption("role3", "Role granted on acceptance", false),
				roleOption("role4", "Role granted on acceptance", false),
			},
		},
		guildOnly: true,
		run:       (*Bot).cmdAddCategory,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "removecategory",
			Description: "Remove an application category",
			Options:     []*discordgo.ApplicationCommandOption{categoryOption("Category to remove")},
		},
		guildOnly: true,
		run:       (*Bot).cmdRemoveCategory,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "editquestions",
			Description: "Edit the first questions of a category",
			Options:     []*discordgo.ApplicationCommandOption{categoryOption("Category to edit")},
		},
		guildOnly: true,
		respond:   (*Bot).cmdEditQuestions,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "addquestion",
			Description: "Add a question to a category",
			Options: []*discordgo.ApplicationCommandOption{
				categoryOption("Category to add the question to"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "question",
					Description: "Question text",
					Required:    true,
					MaxLength:   1000,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "How the applicant answers",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: models.QuestionText.Label(), Value: string(models.QuestionText)},
						{Name: models.QuestionYesNo.Label(), Value: string(models.QuestionYesNo)},
					},
				},
			},
		},
		guildOnly: true,
		run:       (*Bot).cmdAddQuestion,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "removequestion",
			Description: "Remove a question from a category",
			Options: []*discordgo.ApplicationCommandOption{
				categoryOption("Category to remove the question from"),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "number",
					Description: "Question number as shown by /listquestions",
					Required:    true,
					MinValue:    &minQuestion,
					MaxValue:    models.MaxQuestions,
				},
			},
		},
		guildOnly: true,
		run:       (*Bot).cmdRemoveQuestion,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "listquestions",
			Description: "List the questions of a category",
			Options:     []*discordgo.ApplicationCommandOption{categoryOption("Category to list")},
		},
		guildOnly: true,
		run:       (*Bot).cmdListQuestions,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "setlogchannel",
			Description: "Change where submitted applications are posted",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "Staff log channel",
				Required:     true,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			}},
		},
		guildOnly: true,
		run:       (*Bot).cmdSetLogChannel,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "setticketcategory",
			Description: "Set the channel category tickets are created in",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "category",
				Description:  "Channel category",
				Required:     true,
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
			}},
		},
		guildOnly: true,
		run:       (*Bot).cmdSetTicketCategory,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "setcooldown",
			Description: "Set the hours a member waits between applications",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "hours",
				Description: "0 disables the cooldown",
				Required:    true,
				MinValue:    &minCooldown,
				MaxValue:    models.MaxCooldownHours,
			}},
		},
		guildOnly: true,
		run:       (*Bot).cmdSetCooldown,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "addadminrole",
			Description: "Allow a role to manage and review applications",
			Options:     []*discordgo.ApplicationCommandOption{roleOption("role", "Role to add", true)},
		},
		guildOnly: true,
		run:       (*Bot).cmdAddAdminRole,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "removeadminrole",
			Description: "Stop a role from managing applications",
			Options:     []*discordgo.ApplicationCommandOption{roleOption("role", "Role to remove", true)},
		},
		guildOnly: true,
		run:       (*Bot).cmdRemoveAdminRole,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "viewconfig",
			Description: "Show this server's application settings",
		},
		guildOnly: true,
		run:       (*Bot).cmdViewConfig,
	},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "pendingapplications",
			Description: "List applications awaiting review",
		},
		guildOnly: true,
		run:       (*Bot).cmdPending,
	},
}

const helpText = `**For members**
Pick a category from the application panel. The bot asks you the questions in a direct message. Type ` + "`cancel`" + ` in the DM to stop.

**For admins**
` + "`/setup`" + ` set the log channel and admin role
` + "`/panel`" + ` post the application panel
` + "`/addcategory` `/removecategory`" + ` manage categories
` + "`/addquestion` `/removequestion` `/editquestions` `/listquestions`" + ` manage questions
` + "`/setlogchannel` `/setticketcategory` `/setcooldown`" + ` change settings
` + "`/addadminrole` `/removeadminrole`" + ` manage who can review
` + "`/viewconfig` `/pendingapplications`" + ` inspect the current state

Staff review applications with the buttons under each post in the log channel.`

func (b *Bot) cmdHelp(_ context.Context, _ *discordgo.InteractionCreate, _ options) (*discordgo.MessageEmbed, error) {
	return info("Application Bot Help", helpText), nil
}

func (b *Bot) cmdSetup(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	cfg, err := b.admin.Setup(ctx, i.GuildID, member(i), opts.id("log_channel"), opts.id("admin_role"))
	if err != nil {
		return nil, err
	}
	return success("Setup complete", fmt.Sprintf(
		"Applications will be posted in %s and can be reviewed by %s.\nCreated %d default categories. Run `/panel` to post the application panel.",
		channelMention(cfg.LogChannelID), roleMentions(cfg.AdminRoleIDs), len(cfg.Categories))), nil
}

// cmdPanel posts the category menu publicly, so it answers without deferring
func (b *Bot) cmdPanel(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	if err := b.admin.Authorize(ctx, i.GuildID, member(i)); err != nil {
		b.respondError(i, err)
		return
	}
	categories, err := b.admin.Panel(ctx, i.GuildID)
	if err != nil {
		b.respondError(i, err)
		return
	}
	panel := panelMessage(categories)

	if target := opts.id("channel"); target != "" && target != i.ChannelID {
		if _, err := b.s.ChannelMessageSendComplex(target, panel, discordgo.WithContext(ctx)); err != nil {
			slog.Warn("failed to post panel", "guild", i.GuildID, "channel", target, "err", err)
			b.respondError(i, classify(err, "send messages in that channel"))
			return
		}
		b.respond(i, fmt.Sprintf("✅ Application panel deployed in %s!", channelMention(target)))
		return
	}

	err = b.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     panel.Embeds,
			Components: panel.Components,
		},
	})
	if err != nil {
		slog.Warn("failed to post panel", "guild", i.GuildID, "err", err)
	}
}

func (b *Bot) cmdAddCategory(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	var roles []string
	for n := 1; n <= admin.MaxCategoryRoles; n++ {
		if id := opts.id(fmt.Sprintf("role%d", n)); id != "" {
			roles = append(roles, id)
		}
	}
	c, err := b.admin.AddCategory(ctx, i.GuildID, member(i), opts.str("name"), opts.str("description"), roles)
	if err != nil {
		return nil, err
	}
	return success("Category added", fmt.Sprintf(
		"**%s** was created with %d starter questions.\nAuto-roles: %s\nUse `/editquestions` or `/addquestion` to change them.",
		c.Name, len(c.Questions), roleMentions(c.RoleIDs))), nil
}

func (b *Bot) cmdRemoveCategory(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	name := opts.str("category")
	if err := b.admin.RemoveCategory(ctx, i.GuildID, member(i), name); err != nil {
		return nil, err
	}
	return success("Category removed", fmt.Sprintf("**%s** was removed. Interviews already in progress are not affected.", name)), nil
}

// cmdEditQuestions opens a modal prefilled with the editable questions
func (b *Bot) cmdEditQuestions(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	c, err := b.admin.Questions(ctx, i.GuildID, member(i), opts.str("category"))
	if err != nil {
		b.respondError(i, err)
		return
	}

	inputs, err := editQuestionInputs(c)
	if err != nil {
		b.respondError(i, err)
		return
	}
	b.respondModal(i, platform.Truncate(prefixEditQuestions+c.Name, 100), "Edit "+c.Name, inputs...)
}

// editQuestionInputs builds one modal input per editable question. Discord
// rejects a modal without inputs, so an empty category is an error.
func editQuestionInputs(c *models.Category) ([]discordgo.TextInput, error) {
	if len(c.Questions) == 0 {
		return nil, errx.New(errx.TypeValidation, "CATEGORY_EMPTY", "this category has no questions, use /addquestion first").
			WithDetail("category", c.Name)
	}
	var inputs []discordgo.TextInput
	for n, q := range c.Questions {
		if n == admin.EditableQuestions {
			break
		}
		inputs = append(inputs, discordgo.TextInput{
			CustomID:  questionInputID(n + 1),
			Label:     fmt.Sprintf("Question %d (%s)", n+1, q.Type),
			Style:     discordgo.TextInputParagraph,
			Value:     q.Text,
			Required:  false,
			MaxLength: 1000,
		})
	}
	return inputs, nil
}

func (b *Bot) cmdAddQuestion(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	typ := models.QuestionType(opts.str("type"))
	if typ == "" {
		typ = models.QuestionText
	}
	category := opts.str("category")
	count, err := b.admin.AddQuestion(ctx, i.GuildID, member(i), category, opts.str("question"), typ)
	if err != nil {
		return nil, err
	}
	return success("Question added", fmt.Sprintf("Added a %s question to **%s** (%d/%d).",
		typ.Label(), category, count, models.MaxQuestions)), nil
}

func (b *Bot) cmdRemoveQuestion(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	category := opts.str("category")
	number := opts.integer("number")
	q, err := b.admin.RemoveQuestion(ctx, i.GuildID, member(i), category, number)
	if err != nil {
		return nil, err
	}
	return success("Question removed", fmt.Sprintf("Removed question %d from **%s**:\n%s", number, category, q.Text)), nil
}

func (b *Bot) cmdListQuestions(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	c, err := b.admin.Questions(ctx, i.GuildID, member(i), opts.str("category"))
	if err != nil {
		return nil, err
	}
	return info("Questions", questionsText(c)), nil
}

func (b *Bot) cmdSetLogChannel(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	id := opts.id("channel")
	if err := b.admin.SetLogChannel(ctx, i.GuildID, member(i), id); err != nil {
		return nil, err
	}
	return success("Log channel updated", "Applications will now be posted in "+channelMention(id)+"."), nil
}

func (b *Bot) cmdSetTicketCategory(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	id := opts.id("category")
	if err := b.admin.SetTicketCategory(ctx, i.GuildID, member(i), id); err != nil {
		return nil, err
	}
	return success("Ticket category updated", "Tickets will now be created under "+channelMention(id)+"."), nil
}

func (b *Bot) cmdSetCooldown(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	hours := opts.integer("hours")
	if err := b.admin.SetCooldown(ctx, i.GuildID, member(i), hours); err != nil {
		return nil, err
	}
	if hours == 0 {
		return success("Cooldown disabled", "Members can apply again right after submitting."), nil
	}
	return success("Cooldown updated", fmt.Sprintf("Members must now wait %d hours between applications.", hours)), nil
}

func (b *Bot) cmdAddAdminRole(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	id := opts.id("role")
	count, err := b.admin.AddAdminRole(ctx, i.GuildID, member(i), id)
	if err != nil {
		return nil, err
	}
	return success("Admin role added", fmt.Sprintf("<@&%s> can now manage applications (%d admin roles).", id, count)), nil
}

func (b *Bot) cmdRemoveAdminRole(ctx context.Context, i *discordgo.InteractionCreate, opts options) (*discordgo.MessageEmbed, error) {
	id := opts.id("role")
	count, err := b.admin.RemoveAdminRole(ctx, i.GuildID, member(i), id)
	if err != nil {
		return nil, err
	}
	return success("Admin role removed", fmt.Sprintf("<@&%s> can no longer manage applications (%d admin roles left).", id, count)), nil
}

func (b *Bot) cmdViewConfig(ctx context.Context, i *discordgo.InteractionCreate, _ options) (*discordgo.MessageEmbed, error) {
	cfg, err := b.admin.Config(ctx, i.GuildID, member(i))
	if err != nil {
		return nil, err
	}
	return info("⚙️ Configuration", configText(cfg)), nil
}

func (b *Bot) cmdPending(ctx context.Context, i *discordgo.InteractionCreate, _ options) (*discordgo.MessageEmbed, error) {
	if _, err := b.review.Authorize(ctx, i.GuildID, member(i)); err != nil {
		return nil, err
	}
	apps, err := b.review.Pending(ctx, i.GuildID)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return success("Pending applications", "No pending applications!"), nil
	}
	return info("📋 Pending applications", pendingText(i.GuildID, apps)), nil
}
