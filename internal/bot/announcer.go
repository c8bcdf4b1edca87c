package bot

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/claim-market/internal/ledger"
)

// announceQueueSize bounds trades waiting to be posted.
const announceQueueSize = 64

// MessageSender posts a message to a channel. *discordgo.Session implements it.
type MessageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer posts completed trades to a Discord channel. OnTrade only
// queues; Run does the posting, so a slow Discord never holds up a trade.
type Announcer struct {
	sender    MessageSender
	channelID string
	queue     chan ledger.Record
	logger    *slog.Logger
}

// NewAnnouncer returns an Announcer posting to channelID. With an empty
// channelID trades are dropped silently.
func NewAnnouncer(sender MessageSender, channelID string, logger *slog.Logger) *Announcer {
	return &Announcer{
		sender:    sender,
		channelID: channelID,
		queue:     make(chan ledger.Record, announceQueueSize),
		logger:    logger,
	}
}

// OnTrade implements market.Observer.
func (a *Announcer) OnTrade(ctx context.Context, rec ledger.Record) {
	if a.channelID == "" {
		return
	}
	select {
	case a.queue <- rec:
	default:
		a.logger.WarnContext(ctx, "announcement queue full, dropping trade",
			slog.String("tx_id", rec.ID),
		)
	}
}

// Run posts queued trades until ctx is done.
func (a *Announcer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-a.queue:
			if _, err := a.sender.ChannelMessageSend(a.channelID, Announcement(rec)); err != nil {
				a.logger.WarnContext(ctx, "posting trade announcement",
					slog.String("tx_id", rec.ID),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Announcement is the channel text for a trade.
func Announcement(rec ledger.Record) string {
	switch rec.Type {
	case ledger.TypeAuction:
		return ":hammer: Auction settled: " + ledger.FormatLine(rec)
	case ledger.TypeBuyNow:
		return ":zap: Bought now: " + ledger.FormatLine(rec)
	default:
		return ":house: Claim sold: " + ledger.FormatLine(rec)
	}
}
