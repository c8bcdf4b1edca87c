// Package api is the REST ingress the game host uses to drive the market:
// sign events, purchases, bids and the queues of player messages and sign
// updates it must deliver.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jensholdgaard/claim-market/internal/claims"
	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/market"
	"github.com/jensholdgaard/claim-market/internal/notify"
	"github.com/jensholdgaard/claim-market/internal/sign"
	"github.com/jensholdgaard/claim-market/internal/world"
)

// Market is the part of *market.Market the API drives.
type Market interface {
	Validate(ctx context.Context, actor market.Actor, signLoc world.Location) (claims.Claim, error)
	CreateFromSign(ctx context.Context, actor market.Actor, signLoc world.Location, lines []string) (listing.Listing, error)
	CancelListing(ctx context.Context, actor market.Actor, signLoc world.Location) (listing.Listing, error)
	CancelAuction(ctx context.Context, auctionID string) (bool, error)
	Purchase(ctx context.Context, buyer market.Actor, saleID string) (market.TradeResult, error)
	PlaceBid(ctx context.Context, bidder market.Actor, auctionID string, amount int64) (market.BidResult, error)
	RenameClaim(ctx context.Context, actor market.Actor, claimID, name string) error

	Listings(sellerID string) []listing.Listing
	Listing(id string) (listing.Listing, bool)
	SignLines(loc world.Location) (sign.Lines, bool)
	BidsBy(playerID string) []market.OwnBid
	Recent(count int, playerID string) []ledger.Record
	Transaction(id string) (ledger.Record, error)
	Events(ctx context.Context, listingID string) ([]event.Event, error)
}

// Balances reads and adjusts player balances.
type Balances interface {
	Balance(ctx context.Context, playerID string) (int64, error)
	Adjust(ctx context.Context, playerID string, amount int64, reason string) error
	Format(amount int64) string
}

// Inbox holds queued player messages.
type Inbox interface {
	Drain(playerID string) []notify.Message
}

// Board holds queued sign updates.
type Board interface {
	Drain() []notify.Update
}

// Health serves the health endpoints and says whether this replica is active.
type Health interface {
	LivenessHandler() http.HandlerFunc
	ReadinessHandler() http.HandlerFunc
	Ready() bool
}

// Deps are the collaborators of a Server.
type Deps struct {
	Market   Market
	Balances Balances
	Inbox    Inbox
	Board    Board
	Health   Health
	Logger   *slog.Logger

	// DefaultCount is how many transactions /v1/transactions returns when
	// the request names no count.
	DefaultCount int
}

// Server holds the HTTP handlers.
type Server struct {
	market       Market
	balances     Balances
	inbox        Inbox
	board        Board
	health       Health
	logger       *slog.Logger
	defaultCount int
}

// New returns a Server.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.DefaultCount <= 0 {
		d.DefaultCount = 10
	}
	return &Server{
		market:       d.Market,
		balances:     d.Balances,
		inbox:        d.Inbox,
		board:        d.Board,
		health:       d.Health,
		logger:       d.Logger,
		defaultCount: d.DefaultCount,
	}
}

// Handler builds the gin engine with every route mounted.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.logger), requestLogger(s.logger))
	s.SetupRoutes(r)
	return r
}

// SetupRoutes mounts the health endpoints and the /v1 API on r.
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.GET("/healthz", gin.WrapF(s.health.LivenessHandler()))
	r.GET("/readyz", gin.WrapF(s.health.ReadinessHandler()))

	v1 := r.Group("/v1", requireReady(s.health.Ready))
	{
		v1.POST("/signs", s.createFromSign)
		v1.POST("/signs/validate", s.validateSign)
		v1.DELETE("/signs", s.breakSign)
		v1.GET("/signs", s.signLines)
		v1.GET("/signs/updates", s.signUpdates)

		v1.GET("/listings", s.listListings)
		v1.GET("/listings/:id", s.getListing)
		v1.POST("/sales/:id/purchase", s.purchase)
		v1.POST("/auctions/:id/bids", s.placeBid)
		v1.DELETE("/auctions/:id", s.cancelAuction)

		v1.GET("/players/:id/bids", s.playerBids)
		v1.GET("/players/:id/notifications", s.playerNotifications)
		v1.GET("/players/:id/balance", s.playerBalance)

		v1.GET("/transactions", s.listTransactions)
		v1.GET("/transactions/:id", s.getTransaction)

		v1.PUT("/claims/:id/name", s.renameClaim)

		admin := v1.Group("/admin")
		admin.POST("/balances/:id", s.adjustBalance)
		admin.GET("/listings/:id/events", s.listingEvents)
	}
}
