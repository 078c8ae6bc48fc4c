// Package auth verifies identity tickets and tracks which connection holds
// each account.
//
// A ticket is "<account>.<expiry>.<mac>": the account in unpadded base64url,
// the expiry as unix seconds, and a keyed BLAKE2b-256 MAC of the first two
// fields in hex. Tickets are minted by whatever verified the wallet signature
// (see cmd/ticketgen for a development issuer).
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DefaultTTL is the ticket lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Identity is a verified account.
type Identity struct {
	Account   string
	ExpiresAt time.Time
}

// Verifier checks tickets.
type Verifier interface {
	Verify(ticket string) (Identity, error)
}

// Issuer mints and verifies tickets with one shared secret.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// Compile-time check.
var _ Verifier = (*Issuer)(nil)

// NewIssuer creates an issuer. The secret is hashed into a 32-byte MAC key.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := blake2b.Sum256([]byte(secret))
	return &Issuer{key: key[:], ttl: ttl, now: time.Now}, nil
}

// Issue mints a ticket for account valid for the issuer's TTL.
func (i *Issuer) Issue(account string) (string, time.Time, error) {
	if account == "" {
		return "", time.Time{}, ErrEmptyAccount
	}
	expires := i.now().Add(i.ttl).Truncate(time.Second)

	payload := base64.RawURLEncoding.EncodeToString([]byte(account)) + "." +
		strconv.FormatInt(expires.Unix(), 10)
	mac, err := i.sign(payload)
	if err != nil {
		return "", time.Time{}, err
	}
	return payload + "." + hex.EncodeToString(mac), expires, nil
}

// Verify checks the MAC and expiry of ticket.
func (i *Issuer) Verify(ticket string) (Identity, error) {
	parts := strings.Split(ticket, ".")
	if len(parts) != 3 {
		return Identity{}, ErrMalformedTicket
	}

	accountRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(accountRaw) == 0 {
		return Identity{}, fmt.Errorf("decoding account: %w", ErrMalformedTicket)
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("parsing expiry: %w", ErrMalformedTicket)
	}
	got, err := hex.DecodeString(parts[2])
	if err != nil {
		return Identity{}, fmt.Errorf("decoding mac: %w", ErrMalformedTicket)
	}

	want, err := i.sign(parts[0] + "." + parts[1])
	if err != nil {
		return Identity{}, err
	}
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return Identity{}, ErrBadSignature
	}

	expires := time.Unix(expiry, 0)
	if !i.now().Before(expires) {
		return Identity{}, ErrTicketExpired
	}
	return Identity{Account: string(accountRaw), ExpiresAt: expires}, nil
}

func (i *Issuer) sign(payload string) ([]byte, error) {
	h, err := blake2b.New256(i.key)
	if err != nil {
		return nil, fmt.Errorf("creating mac: %w", err)
	}
	h.Write([]byte(payload))
	return h.Sum(nil), nil
}
