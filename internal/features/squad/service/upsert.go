package service

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strings"

	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/common/validation"
	"flashsquad-backend/internal/features/holdings"
	"flashsquad-backend/internal/features/squad/models"
)

var tokenIDRe = regexp.MustCompile(`^(0x[0-9a-fA-F]{1,64}|[0-9]{1,78})$`)

const (
	reasonUnknownNetwork  = "unknown network"
	reasonInvalidContract = "invalid contract address"
	reasonEmptyToken      = "empty token id"
	reasonInvalidToken    = "invalid token id"
)

func (s *squadService) UpsertHoldings(ctx context.Context, userID, walletID string, hs []holdings.Holding) (*models.UpsertReport, error) {
	records, skipped := s.buildRecords(hs)
	report := &models.UpsertReport{Skipped: skipped}

	for _, sk := range skipped {
		logger.Warn().
			Str("user_id", userID).
			Str("network", sk.Network).
			Str("contract", sk.ContractAddress).
			Str("token_id", sk.TokenID).
			Str("reason", sk.Reason).
			Msg("Skipping malformed holding")
	}

	// An empty scan still runs so squads the wallet left are reconciled.
	res, err := s.repo.UpsertHoldings(ctx, userID, walletID, models.UpsertBatch{
		Records:          records,
		CompleteNetworks: s.completeNetworks(hs),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert holdings: %w", err)
	}
	report.SquadIDs = res.SquadIDs
	report.PersonaIDs = res.PersonaIDs
	return report, nil
}

// buildRecords validates holdings and collapses duplicates, last one wins.
func (s *squadService) buildRecords(hs []holdings.Holding) ([]models.UpsertRecord, []models.SkippedHolding) {
	var (
		records []models.UpsertRecord
		skipped []models.SkippedHolding
		index   = make(map[string]int)
	)
	for i, h := range hs {
		network := strings.ToLower(strings.TrimSpace(h.Chain))
		contract := strings.TrimSpace(h.ContractAddress)
		tokenID := strings.TrimSpace(h.TokenID)

		if reason := s.invalidReason(network, contract, tokenID); reason != "" {
			skipped = append(skipped, models.SkippedHolding{
				Index:           i,
				Network:         h.Chain,
				ContractAddress: h.ContractAddress,
				TokenID:         h.TokenID,
				Reason:          reason,
			})
			continue
		}

		rec := toRecord(network, validation.NormalizeAddress(contract), normalizeTokenID(tokenID), h)
		key := rec.Network + "/" + rec.ContractAddress + "/" + rec.TokenID
		if at, ok := index[key]; ok {
			records[at] = rec
			continue
		}
		index[key] = len(records)
		records = append(records, rec)
	}
	return records, skipped
}

// completeNetworks lists the configured networks whose scan came back under
// the per-chain limit, so the holdings seen there are everything the wallet has.
func (s *squadService) completeNetworks(hs []holdings.Holding) []string {
	counts := make(map[string]int, len(s.networks))
	for _, h := range hs {
		counts[strings.ToLower(strings.TrimSpace(h.Chain))]++
	}
	var out []string
	for n := range s.networks {
		if counts[n] < s.perChain {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// normalizeTokenID renders a validated token id in decimal, so 0x07 and 7 key
// the same NFT.
func normalizeTokenID(tokenID string) string {
	n := new(big.Int)
	var ok bool
	if strings.HasPrefix(tokenID, "0x") {
		_, ok = n.SetString(tokenID[2:], 16)
	} else {
		_, ok = n.SetString(tokenID, 10)
	}
	if !ok {
		return tokenID
	}
	return n.String()
}

func (s *squadService) invalidReason(network, contract, tokenID string) string {
	switch {
	case !s.networks[network]:
		return reasonUnknownNetwork
	case !validation.IsValidAddress(contract):
		return reasonInvalidContract
	case tokenID == "":
		return reasonEmptyToken
	case !tokenIDRe.MatchString(tokenID):
		return reasonInvalidToken
	}
	return ""
}

func toRecord(network, contract, tokenID string, h holdings.Holding) models.UpsertRecord {
	squadName := strings.TrimSpace(h.Collection.Name)
	if squadName == "" {
		squadName = contract
	}
	return models.UpsertRecord{
		Network:         network,
		ContractAddress: contract,
		TokenID:         tokenID,
		CollectionName:  squadName,
		CollectionDesc:  h.Collection.Description,
		CollectionImage: h.Collection.ImageURL,
		BrandColor:      h.Collection.BrandColor,
		NFTName:         h.Name,
		NFTDescription:  h.Description,
		PersonaName:     personaName(squadName, tokenID, h),
		ImageURL:        h.ImageURL,
	}
}

func personaName(squadName, tokenID string, h holdings.Holding) string {
	for _, n := range []string{h.Name, h.ImageAltText} {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return squadName + " #" + tokenID
}
