// Package bot runs the Discord side of the market: read-only slash commands
// and trade announcements.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/bot/commands"
	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/config"
)

// Bot wraps the Discord session and command handlers.
type Bot struct {
	session   *discordgo.Session
	cfg       config.DiscordConfig
	logger    *slog.Logger
	tp        trace.TracerProvider
	announcer *Announcer
	cmds      []*discordgo.ApplicationCommand

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Bot instance. No connection is made until Start.
func New(cfg config.DiscordConfig, logger *slog.Logger, tp trace.TracerProvider) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	return &Bot{
		session:   session,
		cfg:       cfg,
		logger:    logger,
		tp:        tp,
		announcer: NewAnnouncer(session, cfg.ChannelID, logger),
	}, nil
}

// Announcer returns the trade announcer. Hand it to the market as its
// observer; queued trades are posted once the bot has started.
func (b *Bot) Announcer() *Announcer { return b.announcer }

// Start opens the Discord connection, registers slash commands served from
// m and begins posting trade announcements.
func (b *Bot) Start(ctx context.Context, m commands.Market, clk clock.Clock) error {
	handlers := commands.NewHandlers(m, clk, b.tp)

	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.InfoContext(ctx, "bot is ready", slog.String("user", s.State.User.Username))
	})
	b.session.AddHandler(handlers.InteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, commands.SlashCommands())
	if err != nil {
		_ = b.session.Close()
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.cmds = registered
	b.logger.InfoContext(ctx, "slash commands registered", slog.Int("count", len(registered)))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	b.mu.Lock()
	b.cancel, b.done = cancel, done
	b.mu.Unlock()
	go func() {
		defer close(done)
		b.announcer.Run(runCtx)
	}()
	return nil
}

// Stop stops announcing and closes the Discord connection.
func (b *Bot) Stop() error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	for _, cmd := range b.cmds {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, b.cfg.GuildID, cmd.ID); err != nil {
			b.logger.Error("failed to delete command", slog.String("command", cmd.Name), slog.Any("error", err))
		}
	}
	return b.session.Close()
}
