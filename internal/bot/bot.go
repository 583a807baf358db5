// Package bot is the operator/subscriber command layer. It consumes transport
// updates, routes commands, and drives the confirmation gate, the dispatch
// engine, and the scheduler. It owns no delivery logic of its own.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"herald/internal/services/broadcast"
	"herald/internal/services/confirm"
	"herald/internal/services/scheduler"
	"herald/internal/storage"
	"herald/internal/transport"
)

type Config struct {
	AdminUserIDs  []int64
	TargetGroupID int64
}

type Bot struct {
	mu  sync.Mutex
	cfg Config

	client transport.Client
	store  storage.Store
	engine *broadcast.Service
	sched  *scheduler.Service
	gate   *confirm.Service
	log    zerolog.Logger

	// runCtx is the process context; detached dispatches inherit it so they
	// survive the command handler that launched them.
	runCtx context.Context
	wg     sync.WaitGroup
}

func New(cfg Config, client transport.Client, store storage.Store, engine *broadcast.Service, sched *scheduler.Service, gate *confirm.Service, log zerolog.Logger) *Bot {
	return &Bot{
		cfg:    cfg,
		client: client,
		store:  store,
		engine: engine,
		sched:  sched,
		gate:   gate,
		log:    log,
	}
}

func (b *Bot) Apply(cfg Config) {
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
}

func (b *Bot) snapshot() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

func (b *Bot) isAdmin(userID int64) bool {
	for _, id := range b.snapshot().AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Run starts the transport and processes updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.runCtx = ctx
	updates := make(chan transport.Update, 256)
	if err := b.client.Start(ctx, updates); err != nil {
		return err
	}
	b.notifyStartup(ctx)

	for {
		select {
		case <-ctx.Done():
			b.wg.Wait()
			return ctx.Err()
		case up := <-updates:
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				defer func() {
					if r := recover(); r != nil {
						b.log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("panic in update handler")
					}
				}()
				b.route(ctx, up)
			}()
		}
	}
}

func (b *Bot) route(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message != nil {
			b.routeMessage(ctx, up.Message)
		}
	case transport.UpdateCallback:
		if up.Callback != nil {
			b.routeCallback(ctx, up.Callback)
		}
	}
}

func (b *Bot) routeMessage(ctx context.Context, m *transport.Message) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	cmd := strings.Fields(text)[0]
	// Commands issued in groups arrive as "/cmd@botname".
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	if cmd == "/start" {
		b.handleStart(ctx, m)
		return
	}
	if !b.isAdmin(m.FromID) {
		return
	}
	switch cmd {
	case "/vip":
		b.handleVIP(ctx, m)
	case "/send":
		b.handleSend(ctx, m)
	case "/schedule":
		b.handleSchedule(ctx, m)
	case "/stats":
		b.handleStats(ctx, m)
	case "/remshed":
		b.handleCancelSchedules(ctx, m)
	case "/getuser":
		b.handleGetUser(ctx, m)
	case "/deluser":
		b.handleDelUser(ctx, m)
	}
}

func (b *Bot) notifyStartup(ctx context.Context) {
	cfg := b.snapshot()
	text := fmt.Sprintf(
		"🤖 *Bot is now ONLINE!*\n\n"+
			"Throttling: *%d msg/sec*\n"+
			"Use /vip to see your admin commands.",
		b.engine.RatePerSec())
	for _, admin := range cfg.AdminUserIDs {
		if _, err := b.client.SendText(ctx, admin, text, mdOpts()); err != nil {
			b.log.Warn().Int64("admin", admin).Err(err).Msg("could not deliver startup notice")
		}
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) {
	if opt == nil {
		opt = mdOpts()
	}
	if _, err := b.client.SendText(ctx, chatID, text, opt); err != nil {
		b.log.Warn().Int64("chat", chatID).Err(err).Msg("could not deliver reply")
	}
}

func mdOpts() *transport.SendOptions {
	return &transport.SendOptions{ParseMode: "Markdown"}
}
