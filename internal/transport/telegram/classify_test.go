package telegram

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"

	"herald/internal/transport"
)

func TestClassifyPermanentDescriptions(t *testing.T) {
	descriptions := []string{
		"Forbidden: bot was blocked by the user",
		"Forbidden: user is deactivated",
		"Bad Request: chat not found",
		"Forbidden: bot was kicked from the group chat",
		"Forbidden: bot can't initiate conversation with a user",
	}
	for _, desc := range descriptions {
		err := classify(&tele.Error{Code: 403, Description: desc})
		if !transport.IsPermanent(err) {
			t.Errorf("classify(%q): want permanent, got %v", desc, err)
		}
	}
}

func TestClassifyTransientErrors(t *testing.T) {
	cases := []error{
		&tele.Error{Code: 429, Description: "Too Many Requests: retry after 5"},
		&tele.Error{Code: 400, Description: "Bad Request: message to forward not found"},
		errors.New("network unreachable"),
	}
	for _, in := range cases {
		out := classify(in)
		if transport.IsPermanent(out) {
			t.Errorf("classify(%v): must not be permanent", in)
		}
		if !errors.Is(out, in) {
			t.Errorf("classify(%v): original error must be preserved", in)
		}
	}
}

func TestClassifyWrappedTelebotError(t *testing.T) {
	inner := &tele.Error{Code: 403, Description: "Forbidden: user is deactivated"}
	err := classify(fmt.Errorf("sending message: %w", inner))
	if !transport.IsPermanent(err) {
		t.Fatalf("wrapped telebot error must still classify as permanent, got %v", err)
	}
}

func TestClassifyNil(t *testing.T) {
	if classify(nil) != nil {
		t.Fatal("classify(nil) must stay nil")
	}
}
