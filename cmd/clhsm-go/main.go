// Command clhsm-go runs a local threshold decryption round: it builds a
// CL-HSM2k system from a YAML config, shares a fresh key among the configured
// parties, encrypts a message and decrypts it through an in-memory network.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
	"github.com/cofhe/clhsm-go/pkg/clhsm/clhsm2k"
	"github.com/cofhe/clhsm-go/pkg/clhsm/cryptosystem"
	"github.com/cofhe/clhsm-go/pkg/clhsm/logging"
	"github.com/cofhe/clhsm-go/pkg/clhsm/mocknet"
	"github.com/cofhe/clhsm-go/pkg/clhsm/reencrypt"
	"github.com/cofhe/clhsm-go/pkg/clhsm/session"
	"github.com/cofhe/clhsm-go/pkg/clhsm/tlsnet"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML configuration (defaults are used when empty)")
		message     = flag.String("message", "42", "decimal cleartext to encrypt")
		combination = flag.String("parties", "", "comma separated parties to decrypt with (defaults to 0..t-1)")
		transport   = flag.String("transport", "mocknet", "mocknet or tls (loopback mTLS with a throwaway CA)")
		version     = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("clhsm-go %s (wire format %s)\n", clhsm.LibraryVersion(), clhsm.WireFormat)
		return
	}

	cfg := clhsm.DefaultConfig()
	if *configPath != "" {
		loaded, err := clhsm.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = *loaded
	} else if err := cfg.Validate(); err != nil {
		log.Fatalf("default config: %v", err)
	}

	logger := logging.New(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.LogLevel)})))

	combo, err := parseParties(*combination, cfg.Threshold.T)
	if err != nil {
		log.Fatalf("parties: %v", err)
	}
	m, ok := new(big.Int).SetString(*message, 10)
	if !ok {
		log.Fatalf("message %q is not a decimal integer", *message)
	}

	start := time.Now()
	cs, err := cryptosystem.FromConfig(cfg, clhsm2k.WithLogger(logger))
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	logger.Info(context.Background(), "system built", "elapsed", time.Since(start), "modulus_bits", cs.System().N().BitLen(), "k", cfg.K)

	scheme, err := reencrypt.New(cfg.Reencryption.Scheme, cfg.Reencryption.RSABits)
	if err != nil {
		log.Fatalf("reencryption: %v", err)
	}

	sk := cs.GenerateSecretKey()
	pk := cs.DerivePublicKey(sk)
	shares, err := cs.SplitIntoShares(sk, cfg.Threshold.T, cfg.Threshold.N)
	sk.Destroy()
	if err != nil {
		log.Fatalf("split key: %v", err)
	}

	pt, err := cs.NewPlaintext(m)
	if err != nil {
		log.Fatalf("message: %v", err)
	}
	ct, err := cs.Encrypt(pk, pt)
	if err != nil {
		log.Fatalf("encrypt: %v", err)
	}
	// decrypt 2m to show the homomorphism
	doubled, err := cs.AddCiphertexts(pk, ct, ct)
	if err != nil {
		log.Fatalf("add: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	eps, closeAll, err := endpoints(ctx, *transport, cfg.Threshold.N, logger)
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	defer closeAll()
	clientRole := clhsm.RoleID(cfg.Threshold.N)
	for i, share := range shares {
		p := &session.Party{CS: cs, Share: share, Scheme: scheme, Log: logger}
		go func() { _ = p.Serve(ctx, eps[i], clientRole) }()
	}
	client := &session.Client{CS: cs, Scheme: scheme, Log: logger}
	tr := eps[cfg.Threshold.N]

	for _, c := range []struct {
		name string
		ct   *clhsm2k.Ciphertext
	}{{"m", ct}, {"m+m", doubled}} {
		out, err := client.Decrypt(ctx, tr, combo, c.ct)
		if err != nil {
			log.Fatalf("decrypt %s: %v", c.name, err)
		}
		fmt.Printf("%s = %s (mod 2^%d)\n", c.name, out, cfg.K)
	}
	for _, s := range shares {
		s.Destroy()
	}
}

// endpoints returns the transports of parties 0..n-1 followed by the
// client's, which takes role n.
func endpoints(ctx context.Context, kind string, n int, logger logging.Logger) ([]clhsm.Transport, func(), error) {
	parties := make([]clhsm.RoleID, n)
	for i := range parties {
		parties[i] = session.RoleOf(i)
	}
	client := clhsm.RoleID(n)
	out := make([]clhsm.Transport, n+1)

	switch kind {
	case "mocknet":
		mn := mocknet.New()
		for i, r := range parties {
			out[i] = mn.Endpoint(r, []clhsm.RoleID{client})
		}
		out[n] = mn.Endpoint(client, parties)
		return out, mn.Close, nil
	case "tls":
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", kind)
	}

	ca, err := tlsnet.NewAuthority("clhsm-go demo CA", time.Hour)
	if err != nil {
		return nil, nil, err
	}
	peers := make([]tlsnet.Peer, n+1)
	listeners := make([]net.Listener, n+1)
	for i := range peers {
		if listeners[i], err = net.Listen("tcp", "127.0.0.1:0"); err != nil {
			return nil, nil, err
		}
		peers[i] = tlsnet.Peer{Role: clhsm.RoleID(i), Name: fmt.Sprintf("role-%d", i), Address: listeners[i].Addr().String()}
	}
	trs := make([]*tlsnet.Transport, n+1)
	errs := make(chan error, n+1)
	for i := range peers {
		cert, err := ca.Issue(peers[i].Name)
		if err != nil {
			return nil, nil, err
		}
		cfg := tlsnet.Config{
			Self:        peers[i].Role,
			Peers:       []tlsnet.Peer{peers[i], peers[n]},
			Certificate: cert,
			RootCAs:     ca.Pool(),
			Listener:    listeners[i],
			Log:         logger,
		}
		if i == n {
			cfg.Peers = peers
		}
		go func() {
			var err error
			trs[i], err = tlsnet.New(ctx, cfg)
			errs <- err
		}()
	}
	closeAll := func() {
		for _, tr := range trs {
			if tr != nil {
				_ = tr.Close()
			}
		}
	}
	var first error
	for range peers {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		closeAll()
		return nil, nil, first
	}
	for i, tr := range trs {
		out[i] = tr
	}
	return out, closeAll, nil
}

func parseParties(s string, t int) ([]int, error) {
	if s == "" {
		out := make([]int, t)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	var out []int
	for _, f := range strings.Split(s, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("party %q: %w", f, err)
		}
		out = append(out, p)
	}
	return out, nil
}
