package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	receiptdomain "github.com/ledgerline/billing/internal/receipt/domain"
)

func (s *Server) CreateReceipt(c *gin.Context) {
	var req receiptdomain.CreateFromPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.receiptSvc.CreateFromPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) CreateReceiptFromInvoicePayment(c *gin.Context) {
	var req receiptdomain.CreateFromInvoicePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.receiptSvc.CreateFromInvoicePayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) ListReceipts(c *gin.Context) {
	var req receiptdomain.ListReceiptRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.receiptSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Receipts, "page_info": resp.PageInfo})
}

func (s *Server) GetReceiptByID(c *gin.Context) {
	item, err := s.receiptSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) MarkReceiptSent(c *gin.Context) {
	s.receiptTransition(c, s.receiptSvc.MarkSent)
}

func (s *Server) MarkReceiptPaid(c *gin.Context) {
	s.receiptTransition(c, s.receiptSvc.MarkPaid)
}

func (s *Server) CancelReceipt(c *gin.Context) {
	s.receiptTransition(c, s.receiptSvc.Cancel)
}

func (s *Server) receiptTransition(c *gin.Context, fn func(ctx context.Context, id string) (receiptdomain.Receipt, error)) {
	item, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
