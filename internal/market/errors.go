package market

import (
	"errors"
	"fmt"

	"github.com/jensholdgaard/claim-market/internal/economy"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/naming"
	"github.com/jensholdgaard/claim-market/internal/price"
	"github.com/jensholdgaard/claim-market/internal/sign"
)

// Failure classes. Every error returned by a Market operation matches
// exactly one of them with errors.Is.
var (
	ErrInvalidFormat     = price.ErrInvalidFormat
	ErrValidation        = errors.New("rejected")
	ErrInsufficientFunds = economy.ErrInsufficientFunds
	ErrStaleListing      = errors.New("listing is no longer valid")
	ErrSagaStep          = errors.New("transaction cancelled")
	ErrPersistence       = errors.New("could not save market state")
	ErrNotFound          = errors.New("not found")
)

// Rejection reasons. Each one also matches ErrValidation.
var (
	ErrNoClaim       = rejection("there is no claim at this location")
	ErrNotOwner      = rejection("you do not own this claim")
	ErrAdminClaim    = rejection("admin claims cannot be sold")
	ErrSubclaim      = rejection("subclaims cannot be sold separately, sell the parent claim")
	ErrAlreadyListed = rejection("this claim is already listed")
	ErrSelfTrade     = rejection("you cannot trade with yourself")
	ErrAuctionEnded  = rejection("this auction has ended")
	ErrBidTooLow     = rejection("bid is below the minimum bid")
	ErrBidNotHigher  = rejection("new bid must be higher than your existing bid")
	ErrNotSeller     = rejection("only the seller or an admin can cancel this listing")
)

type rejectionError struct{ msg string }

func (e *rejectionError) Error() string { return e.msg }
func (e *rejectionError) Unwrap() error { return ErrValidation }

func rejection(msg string) error { return &rejectionError{msg: msg} }

// classify maps errors from lower layers onto the failure classes.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, listing.ErrSignInUse), errors.Is(err, listing.ErrClaimListed):
		return fmt.Errorf("%w: %w", ErrAlreadyListed, err)
	case errors.Is(err, listing.ErrAuctionClosed):
		return ErrAuctionEnded
	case errors.Is(err, listing.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, listing.ErrPersistence), errors.Is(err, ledger.ErrPersistence):
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	case errors.Is(err, sign.ErrOutOfRange),
		errors.Is(err, sign.ErrMissingPrice),
		errors.Is(err, sign.ErrMissingMinBid),
		errors.Is(err, sign.ErrNotMarketSign),
		errors.Is(err, naming.ErrNameTooLong):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	default:
		return err
	}
}
