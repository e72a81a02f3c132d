package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/voteparty/knockout/api"
	"github.com/voteparty/knockout/party"
	"github.com/voteparty/knockout/store"
)

const adminHex = "0x0000000000000000000000000000000000000001"

func newTestServer(t *testing.T) (*api.Server, *store.Memory) {
	t.Helper()
	engine, err := party.New(party.Parameters{
		Name:              "api-party",
		Admin:             common.HexToAddress(adminHex),
		RoundDuration:     time.Minute,
		MaxVotesPerRound:  5,
		DefaultVoteWeight: 1,
	}, party.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	st := store.NewMemory()
	return api.NewServer(api.Config{ListenAddr: ":0"}, engine, st, zerolog.Nop()), st
}

func post(t *testing.T, s *api.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, s *api.Server, path string) *http.Response {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestRegisterAndVoteFlow(t *testing.T) {
	s, st := newTestServer(t)
	voter := "0x00000000000000000000000000000000000000aa"
	candidate := "0x00000000000000000000000000000000000000bb"

	resp := post(t, s, "/register", map[string]any{"address": voter})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// duplicate registration is a conflict
	resp = post(t, s, "/register", map[string]any{"address": voter})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// no round yet
	resp = get(t, s, "/rounds/current")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// only the admin may start a round
	resp = post(t, s, "/rounds/next", map[string]any{"address": voter})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = post(t, s, "/rounds/next", map[string]any{"address": adminHex})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var round party.RoundInfo
	decode(t, get(t, s, "/rounds/current"), &round)
	require.Equal(t, 1, round.Number)
	require.True(t, round.Active)

	resp = post(t, s, "/ballots", map[string]any{
		"address":    voter,
		"recipients": []string{candidate},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var receipt api.Receipt
	decode(t, resp, &receipt)
	require.Equal(t, 1, receipt.Round)
	require.Len(t, receipt.Recipients, 1)

	var info struct {
		Votes    uint64 `json:"votes"`
		Position int    `json:"position"`
	}
	decode(t, get(t, s, fmt.Sprintf("/candidates/%s", candidate)), &info)
	require.EqualValues(t, 1, info.Votes)
	require.Equal(t, 1, info.Position)

	// every successful mutation leaves a persisted snapshot behind
	snap, found, err := st.Load()
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, snap.Registered, 1)
}

func TestBallotValidation(t *testing.T) {
	s, _ := newTestServer(t)

	resp := post(t, s, "/register", map[string]any{"address": "not-an-address"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, s, "/ballots", map[string]any{
		"address":    "0x00000000000000000000000000000000000000aa",
		"recipients": []string{"garbage"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCandidatePagination(t *testing.T) {
	s, _ := newTestServer(t)
	resp := get(t, s, "/candidates?page_size=0&page=1")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, s, "/candidates?page_size=2&page=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Candidates []party.Candidate `json:"candidates"`
	}
	decode(t, resp, &page)
	require.Len(t, page.Candidates, 2)
}
