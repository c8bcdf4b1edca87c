// Package sign reads listing requests from the four lines of a placed sign
// and renders the lines shown on listing signs.
package sign

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jensholdgaard/claim-market/internal/config"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/price"
)

// Errors returned while parsing sign text. Malformed amounts wrap
// price.ErrInvalidFormat instead.
var (
	ErrNotMarketSign = errors.New("not a market sign")
	ErrMissingPrice  = errors.New("no price specified")
	ErrMissingMinBid = errors.New("no minimum bid specified")
	ErrOutOfRange    = errors.New("value out of range")
)

var durationLine = regexp.MustCompile(`^[\d.]+[dhms].*$`)

// Limits bounds what a sign may ask for.
type Limits struct {
	SaleHeaders     []string
	AuctionHeaders  []string
	MinPrice        int64
	MaxPrice        int64 // 0 means unlimited
	MinDuration     time.Duration
	MaxDuration     time.Duration
	DefaultDuration time.Duration
}

// LimitsFrom builds Limits from the market configuration.
func LimitsFrom(cfg config.MarketConfig) Limits {
	return Limits{
		SaleHeaders:     cfg.SaleHeaders,
		AuctionHeaders:  cfg.AuctionHeaders,
		MinPrice:        cfg.SaleMinPrice,
		MaxPrice:        cfg.SaleMaxPrice,
		MinDuration:     cfg.AuctionMinDuration,
		MaxDuration:     cfg.AuctionMaxDuration,
		DefaultDuration: cfg.AuctionDefaultDuration,
	}
}

// Request is a parsed sign. Kind says which of Sale or Auction is set.
type Request struct {
	Kind    listing.Kind
	Sale    SaleRequest
	Auction AuctionRequest
}

// SaleRequest is the content of a "[For Sale]" sign.
type SaleRequest struct {
	Price int64
}

// AuctionRequest is the content of an "[Auction]" sign.
type AuctionRequest struct {
	MinBid   int64
	BuyNow   int64
	Duration time.Duration
}

// Detect reports which kind of listing the header line asks for.
func Detect(lines []string, lim Limits) (listing.Kind, bool) {
	if len(lines) == 0 {
		return 0, false
	}
	header := strings.ToLower(strings.TrimSpace(lines[0]))
	switch {
	case matches(header, lim.SaleHeaders):
		return listing.KindSale, true
	case matches(header, lim.AuctionHeaders):
		return listing.KindAuction, true
	default:
		return 0, false
	}
}

func matches(header string, candidates []string) bool {
	for _, c := range candidates {
		if header == strings.ToLower(strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

// Parse reads a sale or auction request from sign lines.
func Parse(lines []string, lim Limits) (Request, error) {
	kind, ok := Detect(lines, lim)
	if !ok {
		return Request{}, ErrNotMarketSign
	}
	switch kind {
	case listing.KindSale:
		s, err := ParseSale(lines, lim)
		return Request{Kind: kind, Sale: s}, err
	case listing.KindAuction:
		a, err := ParseAuction(lines, lim)
		return Request{Kind: kind, Auction: a}, err
	default:
		return Request{}, ErrNotMarketSign
	}
}

// ParseSale reads the price from the second line of a sale sign.
func ParseSale(lines []string, lim Limits) (SaleRequest, error) {
	if kind, ok := Detect(lines, lim); !ok || kind != listing.KindSale {
		return SaleRequest{}, ErrNotMarketSign
	}
	var text string
	if len(lines) > 1 {
		text = strings.TrimSpace(lines[1])
	}
	if text == "" {
		return SaleRequest{}, ErrMissingPrice
	}

	p, err := price.ParsePrice(text)
	if err != nil {
		return SaleRequest{}, err
	}
	if p < lim.MinPrice {
		return SaleRequest{}, fmt.Errorf("%w: price too low, minimum %s", ErrOutOfRange, price.FormatFull(lim.MinPrice))
	}
	if lim.MaxPrice > 0 && p > lim.MaxPrice {
		return SaleRequest{}, fmt.Errorf("%w: price too high, maximum %s", ErrOutOfRange, price.FormatFull(lim.MaxPrice))
	}
	return SaleRequest{Price: p}, nil
}

// ParseAuction reads the minimum bid, optional buy-now price and duration
// from the lines after the header, in any order.
func ParseAuction(lines []string, lim Limits) (AuctionRequest, error) {
	if kind, ok := Detect(lines, lim); !ok || kind != listing.KindAuction {
		return AuctionRequest{}, ErrNotMarketSign
	}

	var req AuctionRequest
	for _, raw := range lines[1:] {
		line := strings.ToLower(strings.TrimSpace(raw))
		if line == "" {
			continue
		}

		var err error
		switch {
		case strings.HasPrefix(line, "min:"):
			req.MinBid, err = price.ParsePrice(line[len("min:"):])
		case strings.HasPrefix(line, "now:"), strings.HasPrefix(line, "buy:"), strings.HasPrefix(line, "buynow:"):
			req.BuyNow, err = price.ParsePrice(line[strings.Index(line, ":")+1:])
		case durationLine.MatchString(line):
			req.Duration, err = price.ParseDuration(line)
		case req.MinBid == 0:
			if p, perr := price.ParsePrice(line); perr == nil {
				req.MinBid = p
			} else if d, derr := price.ParseDuration(line); derr == nil {
				req.Duration = d
			}
		}
		if err != nil {
			return AuctionRequest{}, err
		}
	}

	if req.MinBid <= 0 {
		return AuctionRequest{}, ErrMissingMinBid
	}
	if req.Duration <= 0 {
		req.Duration = lim.DefaultDuration
	}
	if req.Duration < lim.MinDuration {
		return AuctionRequest{}, fmt.Errorf("%w: duration too short, minimum %s", ErrOutOfRange, lim.MinDuration)
	}
	if req.Duration > lim.MaxDuration {
		return AuctionRequest{}, fmt.Errorf("%w: duration too long, maximum %s", ErrOutOfRange, lim.MaxDuration)
	}
	if req.BuyNow > 0 && req.BuyNow <= req.MinBid {
		return AuctionRequest{}, fmt.Errorf("%w: buy-now price must be higher than the minimum bid", ErrOutOfRange)
	}
	return req, nil
}
