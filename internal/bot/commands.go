package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"herald/internal/services/broadcast"
	"herald/internal/services/confirm"
	"herald/internal/storage"
	"herald/internal/transport"
)

const vipMenu = "👑 *Admin Menu*\n\n" +
	"*/vip*\n" +
	"› Show this menu.\n\n" +
	"*/send*\n" +
	"› Reply to a message with this command. The bot asks for confirmation.\n" +
	"› *Without buttons:* the message is FORWARDED.\n" +
	"› *With buttons:* the message is COPIED.\n\n" +
	"*/schedule* `[delay]`\n" +
	"› Like /send, but delivered later. `[delay]` = 10m, 2h, 1d.\n\n" +
	"*Attaching buttons (/send & /schedule):*\n" +
	"Put each button on its own line after the command, as `Label | URL`.\n\n" +
	"*/stats*\n" +
	"› Show the total subscriber count.\n\n" +
	"*/remshed*\n" +
	"› Cancel *all* scheduled broadcasts.\n\n" +
	"*/getuser* `[USER_ID]`\n" +
	"› Show a subscriber's details.\n\n" +
	"*/deluser* `[USER_ID]`\n" +
	"› Remove a subscriber."

func (b *Bot) handleStart(ctx context.Context, m *transport.Message) {
	cfg := b.snapshot()
	if !m.IsPrivate {
		if m.ChatID == cfg.TargetGroupID {
			name := m.FromUsername
			if name == "" {
				name = m.FromFirstName
			}
			b.reply(ctx, m.ChatID, fmt.Sprintf("👋 @%s, please send me /start in a private message!", name), &transport.SendOptions{})
		}
		return
	}

	b.log.Info().Int64("user", m.FromID).Msg("/start received")
	member, err := b.client.CheckMembership(ctx, cfg.TargetGroupID, m.FromID)
	if err != nil {
		b.log.Error().Int64("user", m.FromID).Err(err).Msg("membership check failed")
		b.reply(ctx, m.ChatID, "⚠️ There was an error verifying your membership. Please try again later.", nil)
		for _, admin := range cfg.AdminUserIDs {
			b.reply(ctx, admin, fmt.Sprintf(
				"🆘 *BOT ERROR*\n\nCould not verify membership of user `%d` in group `%d`.\n\n*Error:* `%v`\n\n👉 Make sure the bot is an ADMINISTRATOR of the group!",
				m.FromID, cfg.TargetGroupID, err), nil)
		}
		return
	}
	if !member {
		b.log.Info().Int64("user", m.FromID).Msg("subscription refused: not a group member")
		b.reply(ctx, m.ChatID,
			"⛔ *Registration failed*\n\n"+
				"To receive broadcasts you must be a member of our main group.\n\n"+
				"Please join the group and send /start here again.", nil)
		return
	}

	created, err := b.store.UpsertSubscriber(ctx, storage.Subscriber{
		ID:        m.FromID,
		FirstName: m.FromFirstName,
		LastName:  m.FromLastName,
		Username:  m.FromUsername,
	})
	if err != nil {
		b.log.Error().Int64("user", m.FromID).Err(err).Msg("subscriber upsert failed")
		b.reply(ctx, m.ChatID, "⚠️ A system error occurred. Please try again later.", nil)
		return
	}
	if created {
		b.log.Info().Int64("user", m.FromID).Msg("new subscriber registered")
		b.reply(ctx, m.ChatID, "✅ *Successfully subscribed!*\n\nYou have been added to the broadcast list.", nil)
	} else {
		b.reply(ctx, m.ChatID, "ℹ️ You are already on the broadcast list.", nil)
	}
}

func (b *Bot) handleVIP(ctx context.Context, m *transport.Message) {
	b.reply(ctx, m.ChatID, vipMenu, nil)
}

func (b *Bot) handleSend(ctx context.Context, m *transport.Message) {
	if m.ReplyTo == nil {
		b.reply(ctx, m.ChatID, "⚠️ *Usage:*\nReply to the message you want to broadcast and type `/send`.", nil)
		return
	}
	buttons := b.parseButtonLines(m)
	count, err := b.store.CountSubscribers(ctx)
	if err != nil {
		b.reply(ctx, m.ChatID, "⚠️ Could not read the subscriber list: "+err.Error(), nil)
		return
	}

	mode := broadcast.ModeFor(buttons)
	b.gate.Propose(m.ChatID, confirm.Pending{Job: broadcast.Job{
		ID:       uuid.NewString(),
		Source:   *m.ReplyTo,
		Mode:     mode,
		Buttons:  buttons,
		ReportTo: m.ChatID,
	}})

	b.reply(ctx, m.ChatID, fmt.Sprintf(
		"⚠️ *Confirm broadcast*\n\n"+
			"You are about to *%s* this message.\n"+
			"Total subscribers: *%d*\n\n"+
			"Please confirm with a button below:",
		opLabel(mode), count),
		withKeyboard(confirmKeyboard(cbBroadcastYes, cbBroadcastNo)))
}

func (b *Bot) handleSchedule(ctx context.Context, m *transport.Message) {
	if m.ReplyTo == nil {
		b.reply(ctx, m.ChatID, "⚠️ *Usage:*\nReply to a message and type `/schedule [delay]` (e.g. `/schedule 2h`).", nil)
		return
	}
	firstLine, _, _ := strings.Cut(m.Text, "\n")
	fields := strings.Fields(firstLine)
	if len(fields) < 2 {
		b.reply(ctx, m.ChatID, "⚠️ *Delay required.*\nUsage: `/schedule 10m`, `/schedule 2h` or `/schedule 1d`.", nil)
		return
	}
	delay, err := ParseDelay(fields[1])
	if err != nil {
		b.reply(ctx, m.ChatID, "⚠️ "+err.Error(), nil)
		return
	}
	buttons := b.parseButtonLines(m)
	count, cerr := b.store.CountSubscribers(ctx)
	if cerr != nil {
		b.reply(ctx, m.ChatID, "⚠️ Could not read the subscriber list: "+cerr.Error(), nil)
		return
	}

	mode := broadcast.ModeFor(buttons)
	b.gate.Propose(m.ChatID, confirm.Pending{
		Job: broadcast.Job{
			ID:       uuid.NewString(),
			Source:   *m.ReplyTo,
			Mode:     mode,
			Buttons:  buttons,
			ReportTo: m.ChatID,
		},
		Scheduled: true,
		Delay:     delay,
	})

	b.reply(ctx, m.ChatID, fmt.Sprintf(
		"⏳ *Confirm schedule*\n\n"+
			"You are about to *%s* this message.\n"+
			"Total subscribers: *%d*\n"+
			"Delivery in: *%s*\n\n"+
			"Please confirm with a button below:",
		opLabel(mode), count, fields[1]),
		withKeyboard(confirmKeyboard(cbScheduleYes, cbScheduleNo)))
}

func (b *Bot) handleStats(ctx context.Context, m *transport.Message) {
	count, err := b.store.CountSubscribers(ctx)
	if err != nil {
		b.reply(ctx, m.ChatID, "⚠️ Could not read statistics: "+err.Error(), nil)
		return
	}
	b.reply(ctx, m.ChatID, fmt.Sprintf("📊 *Bot statistics*\nTotal subscribers: *%d*", count), nil)
}

func (b *Bot) handleCancelSchedules(ctx context.Context, m *transport.Message) {
	n, err := b.sched.CancelAll(ctx)
	if err != nil {
		b.reply(ctx, m.ChatID, "⚠️ Could not cancel scheduled broadcasts: "+err.Error(), nil)
		return
	}
	if n == 0 {
		b.reply(ctx, m.ChatID, "ℹ️ There are no scheduled broadcasts to cancel.", nil)
		return
	}
	b.reply(ctx, m.ChatID, fmt.Sprintf("✅ Done! Cancelled *%d* scheduled broadcast(s).", n), nil)
}

func (b *Bot) handleGetUser(ctx context.Context, m *transport.Message) {
	id, ok := b.userIDArg(ctx, m, "/getuser")
	if !ok {
		return
	}
	sub, err := b.store.GetSubscriber(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(ctx, m.ChatID, fmt.Sprintf("⚠️ User %d is not on the broadcast list.", id), nil)
		return
	}
	if err != nil {
		b.reply(ctx, m.ChatID, "⚠️ Could not load the subscriber: "+err.Error(), nil)
		return
	}
	username := "N/A"
	if sub.Username != "" {
		username = "@" + sub.Username
	}
	lastName := sub.LastName
	if lastName == "" {
		lastName = "N/A"
	}
	b.reply(ctx, m.ChatID, fmt.Sprintf(
		"👤 *Subscriber details: `%d`*\n\n"+
			"First Name: *%s*\n"+
			"Last Name: *%s*\n"+
			"Username: *%s*\n"+
			"Subscribed On: `%s`",
		sub.ID, sub.FirstName, lastName, username,
		sub.SubscribedAt.Format("2006-01-02 15:04:05")), nil)
}

func (b *Bot) handleDelUser(ctx context.Context, m *transport.Message) {
	id, ok := b.userIDArg(ctx, m, "/deluser")
	if !ok {
		return
	}
	if _, err := b.store.GetSubscriber(ctx, id); errors.Is(err, storage.ErrNotFound) {
		b.reply(ctx, m.ChatID, fmt.Sprintf("⚠️ User %d is not on the broadcast list.", id), nil)
		return
	} else if err != nil {
		b.reply(ctx, m.ChatID, "⚠️ Could not load the subscriber: "+err.Error(), nil)
		return
	}
	if err := b.store.RemoveSubscriber(ctx, id); err != nil {
		b.reply(ctx, m.ChatID, "⚠️ Could not remove the subscriber: "+err.Error(), nil)
		return
	}
	b.reply(ctx, m.ChatID, fmt.Sprintf("✅ User %d was removed from the broadcast list.", id), nil)
}

func (b *Bot) userIDArg(ctx context.Context, m *transport.Message, cmd string) (int64, bool) {
	fields := strings.Fields(m.Text)
	if len(fields) < 2 {
		b.reply(ctx, m.ChatID, fmt.Sprintf("Usage: `%s [USER_ID]`", cmd), nil)
		return 0, false
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		b.reply(ctx, m.ChatID, "⚠️ Invalid user ID; digits only.", nil)
		return 0, false
	}
	return id, true
}

func (b *Bot) parseButtonLines(m *transport.Message) []transport.Button {
	buttons, rejected := ParseButtons(m.Text)
	for _, line := range rejected {
		b.log.Warn().Str("line", line).Msg("skipping malformed button line")
	}
	return buttons
}

func opLabel(mode broadcast.Mode) string {
	if mode == broadcast.ModeCopy {
		return "COPY (with buttons)"
	}
	return "FORWARD"
}
