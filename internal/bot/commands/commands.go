// Package commands implements the Discord slash commands that show the
// market: open listings, recent transactions and single transaction details.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/market"
	"github.com/jensholdgaard/claim-market/internal/price"
)

const (
	defaultCount = 10
	maxCount     = 25

	// maxListingLines keeps replies under Discord's 2000 character limit.
	maxListingLines = 20
)

// Market is the read side of the market the commands show.
type Market interface {
	Listings(sellerID string) []listing.Listing
	Recent(count int, playerID string) []ledger.Record
	Transaction(id string) (ledger.Record, error)
}

// Handlers process Discord interactions.
type Handlers struct {
	market Market
	clock  clock.Clock
	tracer trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(m Market, clk clock.Clock, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		market: m,
		clock:  clk,
		tracer: tp.Tracer("github.com/jensholdgaard/claim-market/internal/bot/commands"),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	minCount := 1.0
	return []*discordgo.ApplicationCommand{
		{
			Name:        "listings",
			Description: "Show claims currently for sale or at auction",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "seller",
					Description: "Only listings by this player id",
					Required:    false,
				},
			},
		},
		{
			Name:        "transactions",
			Description: "Show recent claim transactions",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: fmt.Sprintf("How many to show (default %d, max %d)", defaultCount, maxCount),
					Required:    false,
					MinValue:    &minCount,
					MaxValue:    maxCount,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "player",
					Description: "Only transactions involving this player id",
					Required:    false,
				},
			},
		},
		{
			Name:        "transaction",
			Description: "Show one transaction in detail",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "id",
					Description: "Transaction id, e.g. TX000042",
					Required:    true,
				},
			},
		},
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	respond(s, i, h.Reply(context.Background(), data.Name, data.Options))
}

// Reply builds the response text for a command.
func (h *Handlers) Reply(ctx context.Context, name string, opts []*discordgo.ApplicationCommandInteractionDataOption) string {
	_, span := h.tracer.Start(ctx, "Handlers.Reply",
		trace.WithAttributes(attribute.String("command", name)),
	)
	defer span.End()

	byName := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		byName[o.Name] = o
	}

	switch name {
	case "listings":
		return h.listings(stringOpt(byName, "seller"))
	case "transactions":
		count := defaultCount
		if o, ok := byName["count"]; ok {
			count = int(o.IntValue())
		}
		return h.transactions(count, stringOpt(byName, "player"))
	case "transaction":
		return h.transaction(stringOpt(byName, "id"))
	default:
		return "Unknown command"
	}
}

func (h *Handlers) listings(sellerID string) string {
	ls := h.market.Listings(sellerID)
	if len(ls) == 0 {
		return "No claims are listed right now."
	}

	now := h.clock.Now()
	var b strings.Builder
	b.WriteString("**Claims on the market:**\n")
	for idx, l := range ls {
		if idx == maxListingLines {
			fmt.Fprintf(&b, "...and %d more", len(ls)-maxListingLines)
			break
		}
		c := l.Base()
		switch l := l.(type) {
		case listing.Sale:
			fmt.Fprintf(&b, "`%s` %s (%d blocks) by %s for **%s**\n",
				c.ID, c.Dimensions, c.Area, c.SellerName, price.FormatFull(l.Price))
		case listing.Auction:
			fmt.Fprintf(&b, "`%s` %s (%d blocks) by %s, min bid **%s**",
				c.ID, c.Dimensions, c.Area, c.SellerName, price.FormatFull(l.MinBid))
			if l.HasBuyNow() {
				fmt.Fprintf(&b, ", buy now **%s**", price.FormatFull(l.BuyNow))
			}
			fmt.Fprintf(&b, ", ends in %s\n", price.FormatRemaining(l.Remaining(now)))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handlers) transactions(count int, playerID string) string {
	if count < 1 {
		count = 1
	}
	if count > maxCount {
		count = maxCount
	}
	recs := h.market.Recent(count, playerID)
	if len(recs) == 0 {
		return "No transactions yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Recent transactions** (%d):\n", len(recs))
	for _, r := range recs {
		b.WriteString(ledger.FormatLine(r))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handlers) transaction(id string) string {
	rec, err := h.market.Transaction(strings.ToUpper(strings.TrimSpace(id)))
	if errors.Is(err, market.ErrNotFound) {
		return fmt.Sprintf("Transaction `%s` not found.", id)
	}
	if err != nil {
		return fmt.Sprintf("Error loading transaction: %s", err)
	}
	return "```\n" + ledger.FormatDetail(rec) + "\n```"
}

func stringOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		return o.StringValue()
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}
