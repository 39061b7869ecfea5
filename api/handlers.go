package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sealed-ballot/ballot"
	"sealed-ballot/encryption"
	"sealed-ballot/models"
	"sealed-ballot/service"
	"sealed-ballot/storage"
)

const publicKeyFingerprintHeader = "X-Public-Key-Fingerprint"

type EnrolRequest struct {
	Username string `json:"username" binding:"required"`
}

type EnrolResponse struct {
	Account  *models.Account  `json:"account"`
	Identity *models.Identity `json:"identity"`
}

type CastVoteRequest struct {
	PrivateKey string            `json:"private_key" binding:"required"`
	Answers    map[string]string `json:"answers" binding:"required"`
}

type CastVoteResponse struct {
	BallotID      string         `json:"ballot_id"`
	Sequence      uint64         `json:"sequence"`
	Signature     string         `json:"signature"`
	Envelope      string         `json:"envelope"`
	PublicKeyHash string         `json:"public_key_hash"`
	Receipt       models.Receipt `json:"receipt"`
	CastAt        time.Time      `json:"cast_at"`
}

type KeyCheckRequest struct {
	PrivateKey string `json:"private_key" binding:"required"`
}

type KeyCheckResponse struct {
	Status  models.KeyStatus `json:"status"`
	Message string           `json:"message"`
}

type VerifyReceiptRequest struct {
	Receipt models.Receipt `json:"receipt" binding:"required"`
}

type VerifyReceiptResponse struct {
	Valid   bool   `json:"valid"`
	Address string `json:"address"`
}

type LedgerResponse struct {
	Root  string `json:"root"`
	Count int    `json:"count"`
	Match *bool  `json:"match,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"voting_active":   s.votingService.IsVotingActive(),
		"receipt_address": s.votingService.ReceiptAddress(),
	})
}

func (s *Server) handleGetQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, s.votingService.Definition())
}

func (s *Server) handleEnrol(c *gin.Context) {
	var req EnrolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body")
		return
	}
	account, identity, err := s.votingService.Enrol(c.Request.Context(), req.Username)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, EnrolResponse{Account: account, Identity: identity})
}

func (s *Server) handleGetIdentity(c *gin.Context) {
	identity, err := s.votingService.Identity(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// handleIssueKeys returns the private key once, as a file download. Only its
// fingerprint travels in a header; the public key stays on the identity.
func (s *Server) handleIssueKeys(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	pair, err := s.votingService.IssueKeys(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	identity, err := s.votingService.Identity(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", identity.Label+"_private.key"))
	c.Header("Cache-Control", "no-store")
	c.Header(publicKeyFingerprintHeader, encryption.PublicKeyHash(pair.PublicKeyPEM))
	c.Data(http.StatusOK, "application/x-pem-file", []byte(pair.PrivateKeyPEM))
}

func (s *Server) handleKeyCheck(c *gin.Context) {
	var req KeyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body")
		return
	}
	status, err := s.votingService.CheckKeyValidity(c.Request.Context(), c.Param("id"), []byte(req.PrivateKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, KeyCheckResponse{Status: status, Message: service.KeyStatusMessage(status)})
}

func (s *Server) handleCastVote(c *gin.Context) {
	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body")
		return
	}
	sealed, err := s.votingService.Cast(c.Request.Context(), c.Param("id"), []byte(req.PrivateKey), req.Answers)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, castVoteResponse(sealed))
}

func (s *Server) handleGetBallot(c *gin.Context) {
	sealed, err := s.votingService.Ballot(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, castVoteResponse(sealed))
}

func (s *Server) handleGetResults(c *gin.Context) {
	results, err := s.votingService.Tally(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// handleGetLedger returns the current ledger root. With root and count query
// parameters it also reports whether the stored ballots reproduce that root.
func (s *Server) handleGetLedger(c *gin.Context) {
	ctx := c.Request.Context()
	root, count, err := s.votingService.LedgerRoot(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := LedgerResponse{Root: root, Count: count}

	if published := c.Query("root"); published != "" {
		at, err := strconv.Atoi(c.DefaultQuery("count", strconv.Itoa(count)))
		if err != nil {
			s.badRequest(c, "count must be an integer")
			return
		}
		match, err := s.votingService.MatchesLedger(ctx, published, at)
		if err != nil {
			s.fail(c, err)
			return
		}
		resp.Match = &match
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVerifyReceipt(c *gin.Context) {
	var req VerifyReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body")
		return
	}
	c.JSON(http.StatusOK, VerifyReceiptResponse{
		Valid:   s.votingService.VerifyReceipt(req.Receipt),
		Address: s.votingService.ReceiptAddress(),
	})
}

func (s *Server) handleAudit(c *gin.Context) {
	report, err := s.votingService.Audit(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func castVoteResponse(sb *models.SealedBallot) CastVoteResponse {
	return CastVoteResponse{
		BallotID:      sb.ID,
		Sequence:      sb.Sequence,
		Signature:     sb.Signature,
		Envelope:      sb.Envelope,
		PublicKeyHash: sb.PublicKeyHash,
		Receipt:       sb.Receipt,
		CastAt:        sb.CastAt,
	}
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// fail writes the voter-facing message for err with the matching status.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: service.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrAlreadyVoted),
		errors.Is(err, service.ErrVotingClosed),
		errors.Is(err, service.ErrKeysNotIssued),
		errors.Is(err, storage.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrKeyMismatch):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnknownIdentity),
		errors.Is(err, service.ErrNoBallot):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, encryption.ErrInvalidKeyMaterial),
		errors.Is(err, ballot.ErrIncompleteBallot),
		errors.Is(err, ballot.ErrUnknownAnswer),
		errors.Is(err, ballot.ErrInvalidBallot):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
