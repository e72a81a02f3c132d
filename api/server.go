// Package api exposes the voting engine over HTTP. It is the host surface the
// engine itself stays agnostic of: handlers authenticate the caller, stamp the
// current time, serialize access to the engine and persist a snapshot after
// every successful mutation.
package api

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voteparty/knockout/party"
	"github.com/voteparty/knockout/store"
)

// Config holds the server settings.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string
	// VerifySignatures requires every mutating request to carry a valid
	// wallet signature over the party-scoped message for that operation.
	VerifySignatures bool
}

// Server serves the party operations over HTTP.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger zerolog.Logger

	// mtx serializes every engine call: the engine is a single-writer state
	// machine with no internal locking
	mtx    sync.Mutex
	engine *party.Engine
	store  store.Store
	now    func() time.Time
}

// NewServer wires the engine behind an HTTP API. st may be nil to disable
// persistence.
func NewServer(cfg Config, engine *party.Engine, st store.Store, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		store:  st,
		logger: logger,
		now:    time.Now,
	}
	app := fiber.New(fiber.Config{
		AppName:               "knockout",
		DisableStartupMessage: true,
	})

	app.Post("/register", s.handleRegister)
	app.Post("/rounds/next", s.handleStartRound)
	app.Post("/ballots", s.handleCastVote)

	app.Get("/rounds/current", s.handleCurrentRound)
	app.Get("/candidates", s.handleCandidates)
	app.Get("/candidates/:address", s.handleCandidate)
	app.Get("/rounds/:round/candidates", s.handleRoundCandidates)
	app.Get("/rounds/:round/voters/:address", s.handleRoundVoter)

	s.app = app
	return s
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying fiber application. Used by tests to issue
// in-process requests.
func (s *Server) App() *fiber.App {
	return s.app
}

type registerRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	caller, err := s.authenticate(req.Address, registerMessage(s.engine.Params().Name), req.Signature)
	if err != nil {
		return unauthorized(c, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := s.engine.Register(caller, s.now()); err != nil {
		return engineError(c, err)
	}
	s.persist()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"registered": caller})
}

type startRoundRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

func (s *Server) handleStartRound(c *fiber.Ctx) error {
	var req startRoundRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	caller, err := s.authenticate(req.Address, startRoundMessage(s.engine.Params().Name), req.Signature)
	if err != nil {
		return unauthorized(c, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	info, err := s.engine.StartNextRound(caller, s.now())
	if err != nil {
		return engineError(c, err)
	}
	s.persist()
	return c.Status(fiber.StatusCreated).JSON(info)
}

type ballotRequest struct {
	Address    string   `json:"address"`
	Recipients []string `json:"recipients"`
	Signature  string   `json:"signature"`
}

// Receipt acknowledges an accepted ballot.
type Receipt struct {
	ID         uuid.UUID        `json:"id"`
	Voter      party.Identity   `json:"voter"`
	Round      int              `json:"round"`
	Recipients []party.Identity `json:"recipients"`
	Time       time.Time        `json:"time"`
}

func (s *Server) handleCastVote(c *fiber.Ctx) error {
	var req ballotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}
	recipients, err := parseAddresses(req.Recipients)
	if err != nil {
		return badRequest(c, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	now := s.now()
	round, err := s.engine.CurrentRound(now)
	if err != nil {
		return engineError(c, err)
	}
	voter, err := s.authenticate(req.Address,
		ballotMessage(s.engine.Params().Name, round.Number, recipients), req.Signature)
	if err != nil {
		return unauthorized(c, err)
	}
	if err := s.engine.CastVote(voter, recipients, now); err != nil {
		return engineError(c, err)
	}
	s.persist()
	return c.Status(fiber.StatusCreated).JSON(Receipt{
		ID:         uuid.New(),
		Voter:      voter,
		Round:      round.Number,
		Recipients: recipients,
		Time:       now,
	})
}

func (s *Server) handleCurrentRound(c *fiber.Ctx) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	info, err := s.engine.CurrentRound(s.now())
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(info)
}

func (s *Server) handleCandidates(c *fiber.Ctx) error {
	pageSize := c.QueryInt("page_size", 25)
	page := c.QueryInt("page", 1)

	s.mtx.Lock()
	defer s.mtx.Unlock()
	entries, err := s.engine.CandidatesInOrder(pageSize, page)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(fiber.Map{
		"page":       page,
		"page_size":  pageSize,
		"candidates": entries,
		"total":      s.engine.TotalNodeCount(),
	})
}

func (s *Server) handleCandidate(c *fiber.Ctx) error {
	addr, err := parseAddress(c.Params("address"))
	if err != nil {
		return badRequest(c, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	return c.JSON(fiber.Map{
		"address":    addr,
		"votes":      s.engine.CandidateTotalVotes(addr),
		"position":   s.engine.Position(addr),
		"has_votes":  s.engine.HasReceivedVotes(addr),
		"registered": s.engine.IsRegistered(addr),
		"eliminated": s.engine.IsEliminated(addr, s.now()),
	})
}

func (s *Server) handleRoundCandidates(c *fiber.Ctx) error {
	round, err := c.ParamsInt("round")
	if err != nil {
		return badRequest(c, err)
	}
	pageSize := c.QueryInt("page_size", 25)
	page := c.QueryInt("page", 1)

	s.mtx.Lock()
	defer s.mtx.Unlock()
	entries, err := s.engine.RoundCandidatesInOrder(round-1, pageSize, page)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(fiber.Map{
		"round":      round,
		"page":       page,
		"page_size":  pageSize,
		"candidates": entries,
	})
}

func (s *Server) handleRoundVoter(c *fiber.Ctx) error {
	round, err := c.ParamsInt("round")
	if err != nil {
		return badRequest(c, err)
	}
	addr, err := parseAddress(c.Params("address"))
	if err != nil {
		return badRequest(c, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	return c.JSON(fiber.Map{
		"round":        round,
		"address":      addr,
		"votes":        s.engine.Votes(addr, round-1),
		"position":     s.engine.RoundPosition(addr, round-1),
		"ballots_used": s.engine.VotesCastInRound(addr, round-1),
	})
}

// persist saves a snapshot of the engine after a successful mutation. The
// mutation has already been applied; a failed save is logged and surfaced on
// the next boot rather than failing the request. Callers must hold mtx.
func (s *Server) persist() {
	if s.store == nil {
		return
	}
	snap, err := s.engine.Snapshot()
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshotting engine state")
		return
	}
	if err := s.store.Save(snap); err != nil {
		s.logger.Error().Err(err).Msg("persisting engine snapshot")
	}
}

func parseAddress(raw string) (party.Identity, error) {
	if !common.IsHexAddress(raw) {
		return party.Identity{}, errors.New("invalid address " + raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAddresses(raw []string) ([]party.Identity, error) {
	out := make([]party.Identity, len(raw))
	for i, r := range raw {
		addr, err := parseAddress(r)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func unauthorized(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
}

// engineError maps the engine's precondition failures to HTTP statuses.
func engineError(c *fiber.Ctx, err error) error {
	status := fiber.StatusConflict
	switch {
	case errors.Is(err, party.ErrNotAdmin):
		status = fiber.StatusForbidden
	case errors.Is(err, party.ErrNoRoundsStarted):
		status = fiber.StatusNotFound
	case errors.Is(err, party.ErrInvalidPagination):
		status = fiber.StatusBadRequest
	case errors.Is(err, party.ErrReentrantCall):
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
