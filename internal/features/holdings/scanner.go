package holdings

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/platform/indexer"
)

// ErrUpstreamUnavailable is returned when any chain could not be scanned.
var ErrUpstreamUnavailable = errors.New("holdings upstream unavailable")

var hexColorRe = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)

// Indexer is the slice of the indexer client the scanner needs.
type Indexer interface {
	WalletByAddress(ctx context.Context, chain, address string, first int) (*indexer.Wallet, error)
}

type Options struct {
	Chains      []string
	PerChain    int
	IPFSGateway string
}

type Scanner struct {
	idx         Indexer
	chains      []string
	perChain    int
	ipfsGateway string
}

func NewScanner(idx Indexer, opts Options) *Scanner {
	gateway := opts.IPFSGateway
	if gateway != "" && !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &Scanner{
		idx:         idx,
		chains:      opts.Chains,
		perChain:    opts.PerChain,
		ipfsGateway: gateway,
	}
}

// Scan queries every configured chain concurrently. limits overrides the
// per-chain limit for the chains it names. Results keep chain order.
func (s *Scanner) Scan(ctx context.Context, address string, limits map[string]int) ([]Holding, error) {
	log := logger.Step(address, "scanning")
	perChain := make([][]Holding, len(s.chains))

	g, gctx := errgroup.WithContext(ctx)
	for i, chain := range s.chains {
		i, chain := i, chain
		limit := s.perChain
		if l, ok := limits[chain]; ok && l > 0 {
			limit = l
		}
		g.Go(func() error {
			w, err := s.idx.WalletByAddress(gctx, chain, address, limit)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, chain, err)
			}
			out := make([]Holding, 0, len(w.NFTs))
			for _, nft := range w.NFTs {
				out = append(out, s.toHolding(chain, nft))
			}
			perChain[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("Holdings scan failed")
		return nil, err
	}

	var all []Holding
	for _, hs := range perChain {
		all = append(all, hs...)
	}
	log.Debug().Int("holdings", len(all)).Msg("Holdings scanned")
	return all, nil
}

func (s *Scanner) toHolding(chain string, nft indexer.NFT) Holding {
	image := nft.Metadata.Image
	if image == "" {
		image = nft.UploadURL
	}
	return Holding{
		Chain:            chain,
		ContractAddress:  strings.ToLower(nft.ContractAddress),
		TokenID:          nft.TokenID,
		Name:             nft.Name,
		Description:      nft.Description,
		ImageURL:         s.GatewayURL(image),
		ImageAltText:     nft.Metadata.Name,
		ImageDescription: nft.Metadata.Description,
		Collection: Collection{
			Name:        nft.Collection.Name,
			Description: nft.Collection.Description,
			ImageURL:    s.GatewayURL(nft.Collection.ImageURL),
			BrandColor:  brandColor(nft.Metadata.BackgroundColor),
		},
	}
}

// GatewayURL rewrites ipfs:// URLs onto the HTTP gateway.
func (s *Scanner) GatewayURL(u string) string {
	if s.ipfsGateway == "" || len(u) < len("ipfs://") || !strings.EqualFold(u[:len("ipfs://")], "ipfs://") {
		return u
	}
	path := u[len("ipfs://"):]
	path = strings.TrimPrefix(path, "ipfs/")
	return s.ipfsGateway + path
}

// brandColor normalizes token background colors to #RRGGBB.
func brandColor(c string) string {
	m := hexColorRe.FindStringSubmatch(strings.TrimSpace(c))
	if m == nil {
		return ""
	}
	return "#" + strings.ToLower(m[1])
}
