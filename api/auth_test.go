package api

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestRecoverSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	msg := registerMessage("block-party")
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	require.NoError(t, err)

	got, err := recoverSigner(msg, hexutil.Encode(sig))
	require.NoError(t, err)
	require.Equal(t, want, got)

	// wallets report the recovery id as 27/28
	legacy := append([]byte(nil), sig...)
	legacy[crypto.RecoveryIDOffset] += 27
	got, err = recoverSigner(msg, hexutil.Encode(legacy))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRecoverSignerRejectsGarbage(t *testing.T) {
	_, err := recoverSigner([]byte("msg"), "not-hex")
	require.Error(t, err)
	_, err = recoverSigner([]byte("msg"), "0x0102")
	require.Error(t, err)
}

func TestAuthenticateChecksClaimedAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	s := &Server{cfg: Config{VerifySignatures: true}}
	msg := registerMessage("block-party")
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	require.NoError(t, err)

	got, err := s.authenticate(signer.Hex(), msg, hexutil.Encode(sig))
	require.NoError(t, err)
	require.Equal(t, signer, got)

	// claiming someone else's address must fail
	_, err = s.authenticate("0x00000000000000000000000000000000000000aa", msg, hexutil.Encode(sig))
	require.Error(t, err)
}
