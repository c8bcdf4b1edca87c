package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jensholdgaard/claim-market/internal/event"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/market"
	"github.com/jensholdgaard/claim-market/internal/notify"
	"github.com/jensholdgaard/claim-market/internal/price"
	"github.com/jensholdgaard/claim-market/internal/world"
)

type actorRequest struct {
	Actor market.Actor `json:"actor"`
}

type signRequest struct {
	Actor    market.Actor   `json:"actor"`
	Location world.Location `json:"location"`
	Lines    []string       `json:"lines"`
}

type bidRequest struct {
	Actor  market.Actor `json:"actor"`
	Amount string       `json:"amount" binding:"required"`
}

type renameRequest struct {
	Actor market.Actor `json:"actor"`
	Name  string       `json:"name" binding:"required"`
}

type adjustRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

// bind decodes the JSON body into req and checks the acting player.
func bind(c *gin.Context, req any, actor *market.Actor) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, "invalid request body", err.Error())
		return false
	}
	if actor != nil && actor.ID == "" {
		respondBadRequest(c, "actor.id is required")
		return false
	}
	return true
}

func bindSign(c *gin.Context) (signRequest, bool) {
	var req signRequest
	if !bind(c, &req, &req.Actor) {
		return req, false
	}
	if req.Location.World == "" {
		respondBadRequest(c, "location.world is required")
		return req, false
	}
	return req, true
}

// POST /v1/signs
func (s *Server) createFromSign(c *gin.Context) {
	req, ok := bindSign(c)
	if !ok {
		return
	}
	l, err := s.market.CreateFromSign(c.Request.Context(), req.Actor, req.Location, req.Lines)
	if err != nil {
		s.respondMarketError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(l))
}

// POST /v1/signs/validate
func (s *Server) validateSign(c *gin.Context) {
	req, ok := bindSign(c)
	if !ok {
		return
	}
	claim, err := s.market.Validate(c.Request.Context(), req.Actor, req.Location)
	if err != nil {
		s.respondMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"claim_id":   claim.ID,
		"area":       claim.Area(),
		"dimensions": claim.Dimensions(),
	})
}

// DELETE /v1/signs
func (s *Server) breakSign(c *gin.Context) {
	req, ok := bindSign(c)
	if !ok {
		return
	}
	l, err := s.market.CancelListing(c.Request.Context(), req.Actor, req.Location)
	if err != nil {
		s.respondMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(l))
}

// GET /v1/signs?location=world:x:y:z
func (s *Server) signLines(c *gin.Context) {
	loc, err := world.ParseKey(c.Query("location"))
	if err != nil {
		respondBadRequest(c, "invalid location", err.Error())
		return
	}
	lines, ok := s.market.SignLines(loc)
	if !ok {
		respondNotFound(c, "no listing at "+loc.String())
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": loc, "lines": lines})
}

// GET /v1/signs/updates
func (s *Server) signUpdates(c *gin.Context) {
	updates := s.board.Drain()
	if updates == nil {
		updates = []notify.Update{}
	}
	c.JSON(http.StatusOK, gin.H{"updates": updates})
}

// GET /v1/listings
func (s *Server) listListings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"listings": viewsOf(s.market.Listings(c.Query("seller")))})
}

// GET /v1/listings/:id
func (s *Server) getListing(c *gin.Context) {
	l, ok := s.market.Listing(c.Param("id"))
	if !ok {
		respondNotFound(c, "listing not found")
		return
	}
	c.JSON(http.StatusOK, viewOf(l))
}

// POST /v1/sales/:id/purchase
func (s *Server) purchase(c *gin.Context) {
	var req actorRequest
	if !bind(c, &req, &req.Actor) {
		return
	}
	res, err := s.market.Purchase(c.Request.Context(), req.Actor, c.Param("id"))
	if err != nil {
		s.respondMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /v1/auctions/:id/bids
func (s *Server) placeBid(c *gin.Context) {
	var req bidRequest
	if !bind(c, &req, &req.Actor) {
		return
	}
	amount, err := price.ParsePrice(req.Amount)
	if err != nil {
		s.respondMarketError(c, err)
		return
	}
	res, err := s.market.PlaceBid(c.Request.Context(), req.Actor, c.Param("id"), amount)
	if err != nil {
		s.respondMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"outcome": res.Outcome.String(),
		"amount":  res.Amount,
		"trade":   res.Trade,
	})
}

// DELETE /v1/auctions/:id
func (s *Server) cancelAuction(c *gin.Context) {
	var req actorRequest
	if !bind(c, &req, &req.Actor) {
		return
	}
	id := c.Param("id")
	l, ok := s.market.Listing(id)
	a, isAuction := l.(listing.Auction)
	if !ok || !isAuction {
		respondNotFound(c, "auction not found")
		return
	}
	if a.SellerID != req.Actor.ID && !req.Actor.Admin {
		s.respondMarketError(c, market.ErrNotSeller)
		return
	}
	cancelled, err := s.market.CancelAuction(c.Request.Context(), id)
	if err != nil {
		s.respondMarketError(c, err)
		return
	}
	if !cancelled {
		respondNotFound(c, "auction not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /v1/players/:id/bids
func (s *Server) playerBids(c *gin.Context) {
	own := s.market.BidsBy(c.Param("id"))
	out := make([]ownBidView, 0, len(own))
	for _, b := range own {
		out = append(out, ownBidView{Auction: viewOf(b.Auction), Amount: b.Bid.Amount, PlacedAt: b.Bid.PlacedAt})
	}
	c.JSON(http.StatusOK, gin.H{"bids": out})
}

// GET /v1/players/:id/notifications
func (s *Server) playerNotifications(c *gin.Context) {
	msgs := s.inbox.Drain(c.Param("id"))
	if msgs == nil {
		msgs = []notify.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GET /v1/players/:id/balance
func (s *Server) playerBalance(c *gin.Context) {
	id := c.Param("id")
	bal, err := s.balances.Balance(c.Request.Context(), id)
	if err != nil {
		s.respondMarketError(c, fmt.Errorf("reading balance: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"player_id": id,
		"balance":   bal,
		"formatted": s.balances.Format(bal),
	})
}

// GET /v1/transactions?count=&player=
func (s *Server) listTransactions(c *gin.Context) {
	count := s.defaultCount
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondBadRequest(c, "count must be a positive integer")
			return
		}
		count = n
	}
	recs := s.market.Recent(count, c.Query("player"))
	out := make([]transactionView, 0, len(recs))
	for _, r := range recs {
		out = append(out, transactionView{Record: r, Summary: ledger.FormatLine(r)})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

// GET /v1/transactions/:id
func (s *Server) getTransaction(c *gin.Context) {
	rec, err := s.market.Transaction(c.Param("id"))
	if err != nil {
		s.respondMarketError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactionView{
		Record:  rec,
		Summary: ledger.FormatLine(rec),
		Detail:  ledger.FormatDetail(rec),
	})
}

// PUT /v1/claims/:id/name
func (s *Server) renameClaim(c *gin.Context) {
	var req renameRequest
	if !bind(c, &req, &req.Actor) {
		return
	}
	if err := s.market.RenameClaim(c.Request.Context(), req.Actor, c.Param("id"), req.Name); err != nil {
		s.respondMarketError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/admin/balances/:id
func (s *Server) adjustBalance(c *gin.Context) {
	var req adjustRequest
	if !bind(c, &req, nil) {
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()
	if err := s.balances.Adjust(ctx, id, req.Amount, req.Reason); err != nil {
		s.respondMarketError(c, err)
		return
	}
	bal, err := s.balances.Balance(ctx, id)
	if err != nil {
		s.respondMarketError(c, fmt.Errorf("reading balance: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"player_id": id, "balance": bal})
}

// GET /v1/admin/listings/:id/events
func (s *Server) listingEvents(c *gin.Context) {
	events, err := s.market.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondMarketError(c, fmt.Errorf("loading events: %w", err))
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
