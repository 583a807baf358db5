package bot

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"herald/internal/transport"
)

var delayRe = regexp.MustCompile(`^(\d+)([mhd])$`)

// ParseDelay converts a schedule delay like "10m", "2h" or "1d" to a duration.
func ParseDelay(s string) (time.Duration, error) {
	m := delayRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, errors.New("invalid delay format; use m (minutes), h (hours) or d (days), e.g. 2h")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, err
	}
	switch m[2] {
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}

// ParseButtons reads inline URL buttons from the lines after a /send or
// /schedule command, one "Label | URL" pair per line. Lines that do not split
// on "|" or whose URL is not http(s) are returned as rejected so the caller
// can warn about them.
func ParseButtons(text string) (buttons []transport.Button, rejected []string) {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return nil, nil
	}
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, url, ok := strings.Cut(line, "|")
		if !ok {
			rejected = append(rejected, line)
			continue
		}
		label = strings.TrimSpace(label)
		url = strings.TrimSpace(url)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			rejected = append(rejected, line)
			continue
		}
		buttons = append(buttons, transport.Button{Label: label, URL: url})
	}
	return buttons, rejected
}
