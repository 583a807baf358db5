package bot

import (
	"context"
	"fmt"
	"time"

	"herald/internal/transport"
)

const (
	cbBroadcastYes = "confirm_broadcast_yes"
	cbBroadcastNo  = "confirm_broadcast_no"
	cbScheduleYes  = "confirm_schedule_yes"
	cbScheduleNo   = "confirm_schedule_no"
)

const expiredText = "⚠️ This action has expired or was already confirmed."

func confirmKeyboard(yesData, noData string) [][]transport.Button {
	return [][]transport.Button{
		{{Label: "✅ YES (confirm)", Data: yesData}},
		{{Label: "❌ NO (cancel)", Data: noData}},
	}
}

func withKeyboard(kb [][]transport.Button) *transport.SendOptions {
	return &transport.SendOptions{ParseMode: "Markdown", Keyboard: kb}
}

func (b *Bot) routeCallback(ctx context.Context, cb *transport.Callback) {
	if !b.isAdmin(cb.FromID) {
		return
	}
	if err := b.client.AnswerCallback(ctx, cb.ID, ""); err != nil {
		b.log.Debug().Err(err).Msg("callback answer failed")
	}
	prompt := transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}

	switch cb.Data {
	case cbBroadcastYes:
		p, err := b.gate.Confirm(cb.ChatID)
		if err != nil {
			b.edit(ctx, prompt, expiredText, nil)
			return
		}
		b.edit(ctx, prompt, "✅ Confirmed. Starting the broadcast...", nil)
		b.engine.Dispatch(b.runCtx, p.Job)

	case cbBroadcastNo:
		b.gate.Cancel(cb.ChatID)
		b.edit(ctx, prompt, "❌ Broadcast cancelled.", nil)

	case cbScheduleYes:
		p, err := b.gate.Confirm(cb.ChatID)
		if err != nil {
			b.edit(ctx, prompt, expiredText, nil)
			return
		}
		stored, err := b.sched.Schedule(ctx, p.Job, p.Delay)
		if err != nil {
			b.log.Error().Err(err).Msg("scheduling broadcast failed")
			// The draft is not lost: put it back so the operator can retry.
			p.CreatedAt = time.Time{}
			b.gate.Propose(cb.ChatID, p)
			b.edit(ctx, prompt,
				"⚠️ *Could not store the scheduled broadcast.*\n\nNothing was scheduled. Press YES to try again.",
				withKeyboard(confirmKeyboard(cbScheduleYes, cbScheduleNo)))
			return
		}
		b.edit(ctx, prompt, fmt.Sprintf(
			"✅ *Scheduled!*\n\nThe broadcast will be sent at `%s`.",
			stored.DueAt.Format("2006-01-02 15:04:05")), nil)

	case cbScheduleNo:
		b.gate.Cancel(cb.ChatID)
		b.edit(ctx, prompt, "❌ Schedule cancelled.", nil)
	}
}

func (b *Bot) edit(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) {
	if opt == nil {
		opt = mdOpts()
	}
	if err := b.client.EditText(ctx, ref, text, opt); err != nil {
		b.log.Warn().Err(err).Msg("could not edit confirmation prompt")
	}
}
