package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/clhsm2k"
	"github.com/cofhe/clhsm-go/pkg/clhsm/cryptosystem"
	"github.com/cofhe/clhsm-go/pkg/clhsm/logging"
	"github.com/cofhe/clhsm-go/pkg/clhsm/reencrypt"
)

// ErrRefused reports that a party declined a decryption request.
var ErrRefused = errors.New("session: party refused request")

// RoleOf maps a party index to its transport role.
func RoleOf(party int) clhsm.RoleID { return clhsm.RoleID(party) }

// Party answers decryption requests with its key shares.
type Party struct {
	CS     cryptosystem.CL
	Share  *clhsm2k.SecretKeyShare
	Scheme reencrypt.Reencryptor
	Log    logging.Logger
}

func (p *Party) logger() logging.Logger {
	if p.Log == nil {
		return logging.Discard()
	}
	return p.Log.With("party", p.Share.Party)
}

// Serve handles requests from client until ctx ends or the transport fails.
// Requests the party cannot honour are answered with an error reply and do
// not stop the loop.
func (p *Party) Serve(ctx context.Context, tr clhsm.Transport, client clhsm.RoleID) error {
	for {
		if err := p.HandleOne(ctx, tr, client); err != nil {
			return err
		}
	}
}

// HandleOne receives one request from client and sends the reply. It only
// returns transport errors.
func (p *Party) HandleOne(ctx context.Context, tr clhsm.Transport, client clhsm.RoleID) error {
	log := p.logger()
	msg, err := tr.Receive(ctx, client)
	if err != nil {
		return err
	}
	sealed, err := p.answer(msg)
	if err != nil {
		log.Warn(ctx, "request refused", "client", client, "error", err)
		return tr.Send(ctx, client, errorReply(err))
	}
	log.Debug(ctx, "partial decryption sent", "client", client, "bytes", len(sealed))
	return tr.Send(ctx, client, okReply(sealed))
}

func (p *Party) answer(msg []byte) ([]byte, error) {
	req, err := parseRequest(msg)
	if err != nil {
		return nil, err
	}
	ct, err := p.CS.DeserializeCiphertext(req.ciphertext)
	if err != nil {
		return nil, err
	}
	pd, err := p.CS.PartialDecrypt(p.Share, req.combination, ct)
	if err != nil {
		return nil, err
	}
	return reencrypt.Reencrypt(p.Scheme, p.CS, pd, req.recipient)
}

// Client drives threshold decryptions.
type Client struct {
	CS     cryptosystem.CL
	Scheme reencrypt.Reencryptor
	Log    logging.Logger
}

// Decrypt asks the parties of combination, a strictly increasing T-subset,
// for their partial decryptions of ct and combines them.
func (c *Client) Decrypt(ctx context.Context, tr clhsm.Transport, combination []int, ct *clhsm2k.Ciphertext) (*clhsm2k.Cleartext, error) {
	const op = "session.Client.Decrypt"
	log := c.Log
	if log == nil {
		log = logging.Discard()
	}
	if len(combination) == 0 {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "empty combination")
	}
	if !slices.IsSorted(combination) || len(slices.Compact(slices.Clone(combination))) != len(combination) {
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "combination %v is not strictly increasing", combination)
	}
	ctData, err := c.CS.SerializeCiphertext(ct)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	kp, err := c.Scheme.GenerateKeyPair()
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	defer kp.Destroy()

	req := (&request{combination: combination, ciphertext: ctData, recipient: kp.Public}).marshal()
	roles := make([]clhsm.RoleID, len(combination))
	g, gctx := errgroup.WithContext(ctx)
	for i, party := range combination {
		roles[i] = RoleOf(party)
		g.Go(func() error {
			if err := tr.Send(gctx, roles[i], req); err != nil {
				return fmt.Errorf("send to party %d: %w", party, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	log.Debug(ctx, "requests sent", "scheme", c.Scheme.Name(), "combination", combination)

	replies, err := tr.ReceiveAll(ctx, roles)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	sealed := make([][]byte, len(combination))
	for i, party := range combination {
		if sealed[i], err = parseReply(party, replies[roles[i]]); err != nil {
			return nil, clhsm.Wrap(op, err)
		}
	}
	m, err := reencrypt.Decrypt(c.Scheme, c.CS, reencrypt.Concatenate(sealed), ct, kp.Private)
	if err != nil {
		return nil, clhsm.Wrap(op, err)
	}
	log.Info(ctx, "threshold decryption complete", "parties", len(combination))
	return m, nil
}
