package telegram

import (
	tele "gopkg.in/telebot.v4"

	"herald/internal/transport"
	"herald/pkg/tgui"
)

func markupFor(rows [][]transport.Button) *tele.ReplyMarkup {
	inline := tgui.NewInline()
	for _, row := range rows {
		btns := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, tgui.URLBtn(b.Label, b.URL))
			} else {
				btns = append(btns, tgui.Btn(b.Label, b.Data))
			}
		}
		inline.Row(btns...)
	}
	return inline.Markup()
}

func sendOptions(opt *transport.SendOptions) *tele.SendOptions {
	if opt == nil {
		return &tele.SendOptions{}
	}
	so := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	}
	if len(opt.Keyboard) > 0 {
		so.ReplyMarkup = markupFor(opt.Keyboard)
	}
	return so
}
