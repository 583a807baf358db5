package telegram

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	"herald/internal/transport"
)

// permanentReasons are Telegram API error description fragments that mean the
// recipient is gone for good. Classification is by reported description text,
// not by error value identity, so it survives telebot adding or renaming its
// predeclared errors.
var permanentReasons = []string{
	"bot was blocked by the user",
	"user is deactivated",
	"chat not found",
	"user not found",
	"bot was kicked",
	"bot can't initiate conversation",
}

// classify wraps permanent recipient failures in transport.PermanentError and
// passes everything else through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var te *tele.Error
	if !errors.As(err, &te) {
		return err
	}
	desc := strings.ToLower(te.Description)
	for _, reason := range permanentReasons {
		if strings.Contains(desc, reason) {
			return transport.Permanent(te.Description, err)
		}
	}
	return err
}
