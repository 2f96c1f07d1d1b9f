package bootstrap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/multiformats/go-multiaddr"
	"github.com/skip2/go-qrcode"
)

// InvitePrefix is the URL scheme a brypt bootstrap invite encodes under.
const InvitePrefix = "brypt://"

// DefaultInviteExpiry is how long a generated invite stays connectable.
const DefaultInviteExpiry = 24 * time.Hour

// Invite is a printable, QR-renderable bootstrap seed: a peer's identifier,
// its listening address, and an expiry. There is no host keypair to sign
// with here -- the invite only carries what DeclareResolvingPeer/LinkPeer
// need to start a fresh key exchange, and that exchange is what actually
// authenticates the peer, so the invite itself is advisory rather than a
// trust anchor.
type Invite struct {
	PeerID    string `json:"p"`
	Address   string `json:"a"`
	CreatedAt int64  `json:"c"`
	ExpiresAt int64  `json:"e"`
}

// NewInvite builds an invite for peerID reachable at addr, expiring after
// expiry.
func NewInvite(peerID string, addr multiaddr.Multiaddr, expiry time.Duration) Invite {
	now := time.Now()
	return Invite{
		PeerID:    peerID,
		Address:   addr.String(),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(expiry).Unix(),
	}
}

// Encode serializes the invite to the compact brypt://<base64> string form.
func (i Invite) Encode() (string, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return "", errs.Newf(errs.Unspecified, "encode invite: %v", err)
	}
	return InvitePrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// ParseInvite decodes a brypt:// invite string, rejecting one past its
// expiry.
func ParseInvite(s string) (Invite, error) {
	if !strings.HasPrefix(s, InvitePrefix) {
		return Invite{}, errs.New(errs.InvalidArgument, "invite missing brypt:// prefix")
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(s, InvitePrefix))
	if err != nil {
		return Invite{}, errs.Newf(errs.InvalidArgument, "invalid invite encoding: %v", err)
	}

	var invite Invite
	if err := json.Unmarshal(raw, &invite); err != nil {
		return Invite{}, errs.Newf(errs.InvalidArgument, "invalid invite data: %v", err)
	}
	if time.Now().Unix() > invite.ExpiresAt {
		return Invite{}, errs.New(errs.Timeout, "invite expired")
	}
	return invite, nil
}

// Record converts the invite to a bootstrap Record with Origin=User, ready
// for InsertBootstrap.
func (i Invite) Record(protocol string) (Record, error) {
	addr, err := multiaddr.NewMultiaddr(i.Address)
	if err != nil {
		return Record{}, errs.Newf(errs.InvalidAddress, "invite address %q: %v", i.Address, err)
	}
	return Record{Protocol: protocol, RemoteAddress: addr, Origin: User}, nil
}

// QR renders the invite as a PNG QR code. The QR payload is
// the short brypt://<id>@<addr> form rather than the full JSON, since that
// is what keeps the QR code scannable at small sizes.
func (i Invite) QR() ([]byte, error) {
	png, err := qrcode.Encode(i.minimalCode(), qrcode.Low, 256)
	if err != nil {
		return nil, errs.Newf(errs.Unspecified, "render invite QR: %v", err)
	}
	return png, nil
}

// QRString renders the invite as ASCII art for terminal display (cmd/brypt
// `invite` subcommand).
func (i Invite) QRString() (string, error) {
	qr, err := qrcode.New(i.minimalCode(), qrcode.Low)
	if err != nil {
		return "", errs.Newf(errs.Unspecified, "render invite QR: %v", err)
	}
	return qr.ToSmallString(false), nil
}

func (i Invite) minimalCode() string {
	return fmt.Sprintf("%s%s@%s", InvitePrefix, i.PeerID, i.Address)
}
