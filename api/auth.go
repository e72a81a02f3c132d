package api

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/voteparty/knockout/party"
)

// Callers authenticate by signing a short, party-scoped text message with
// their wallet key (EIP-191 personal message). The server recovers the signer
// and uses it as the principal; the address field in the request body only
// declares who the caller claims to be.

func registerMessage(partyName string) []byte {
	return []byte(fmt.Sprintf("%s/register", partyName))
}

func startRoundMessage(partyName string) []byte {
	return []byte(fmt.Sprintf("%s/start-round", partyName))
}

// ballotMessage binds a ballot signature to the round number and the exact
// recipient list, in order, so a captured signature cannot be replayed.
func ballotMessage(partyName string, roundNumber int, recipients []party.Identity) []byte {
	hexes := make([]string, len(recipients))
	for i, r := range recipients {
		hexes[i] = strings.ToLower(r.Hex())
	}
	return []byte(fmt.Sprintf("%s/ballot/%d/%s", partyName, roundNumber, strings.Join(hexes, ",")))
}

// recoverSigner returns the address that produced sig over the personal-message
// hash of message.
func recoverSigner(message []byte, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("decoding signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	// wallets encode the recovery id as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// authenticate resolves the caller's identity for a request. With signature
// verification enabled the recovered signer must match the claimed address;
// without it the claimed address is trusted as-is (the host is expected to
// authenticate by other means, for example a reverse proxy).
func (s *Server) authenticate(claimed string, message []byte, sigHex string) (party.Identity, error) {
	if !common.IsHexAddress(claimed) {
		return party.Identity{}, fmt.Errorf("invalid address %q", claimed)
	}
	addr := common.HexToAddress(claimed)
	if !s.cfg.VerifySignatures {
		return addr, nil
	}
	signer, err := recoverSigner(message, sigHex)
	if err != nil {
		return party.Identity{}, err
	}
	if signer != addr {
		return party.Identity{}, fmt.Errorf("signature was produced by %s, not %s", signer, addr)
	}
	return addr, nil
}
