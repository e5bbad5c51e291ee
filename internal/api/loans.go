// internal/api/loans.go
package api

import (
	"net/http"
	"time"

	"lending-engine/internal/common/validation"
	"lending-engine/internal/loan"
	"lending-engine/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type loanRequestBody struct {
	ItemID      uuid.UUID  `json:"item_id"`
	CommunityID *uuid.UUID `json:"community_id"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
}

type loanResponseBody struct {
	Accept bool `json:"accept"`
}

func (s *Server) requestLoan(c *gin.Context) {
	var body loanRequestBody
	if !bindJSON(c, validation.LoanRequest, &body) {
		return
	}
	l, err := s.services.Loans.RequestLoan(c.Request.Context(), currentActor(c), loan.Request{
		ItemID:      body.ItemID,
		CommunityID: body.CommunityID,
		Window:      models.LoanWindow{Start: body.StartDate, End: body.EndDate},
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (s *Server) listIncomingLoans(c *gin.Context) {
	skip, limit, ok := page(c)
	if !ok {
		return
	}
	result, err := s.services.Loans.ListIncoming(c.Request.Context(), currentActor(c), skip, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listOutgoingLoans(c *gin.Context) {
	skip, limit, ok := page(c)
	if !ok {
		return
	}
	result, err := s.services.Loans.ListOutgoing(c.Request.Context(), currentActor(c), skip, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getLoan(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	l, err := s.services.Loans.Get(c.Request.Context(), id, currentActor(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) loanHistory(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	events, err := s.services.Loans.History(c.Request.Context(), id, currentActor(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events, "count": len(events)})
}

func (s *Server) respondLoan(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var body loanResponseBody
	if !bindJSON(c, validation.LoanResponse, &body) {
		return
	}
	s.writeLoan(c)(s.services.Loans.Respond(c.Request.Context(), id, currentActor(c), body.Accept))
}

func (s *Server) ratifyLoan(c *gin.Context) {
	if id, ok := uuidParam(c, "id"); ok {
		s.writeLoan(c)(s.services.Loans.Ratify(c.Request.Context(), id, currentActor(c)))
	}
}

func (s *Server) signalReturn(c *gin.Context) {
	if id, ok := uuidParam(c, "id"); ok {
		s.writeLoan(c)(s.services.Loans.SignalReturn(c.Request.Context(), id, currentActor(c)))
	}
}

func (s *Server) confirmReturn(c *gin.Context) {
	if id, ok := uuidParam(c, "id"); ok {
		s.writeLoan(c)(s.services.Loans.ConfirmReturn(c.Request.Context(), id, currentActor(c)))
	}
}

func (s *Server) writeLoan(c *gin.Context) func(*models.Loan, error) {
	return func(l *models.Loan, err error) {
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, l)
	}
}
