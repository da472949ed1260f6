package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) RequestInvoiceDownload(c *gin.Context) {
	grant, err := s.documentsSvc.RequestInvoiceDownload(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": grant})
}

func (s *Server) RequestReceiptDownload(c *gin.Context) {
	grant, err := s.documentsSvc.RequestReceiptDownload(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": grant})
}

func (s *Server) EmailInvoiceDownloadLink(c *gin.Context) {
	grant, err := s.documentsSvc.EmailInvoiceDownloadLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"expires_at": grant.ExpiresAt, "max_downloads": grant.MaxDownloads}})
}

func (s *Server) EmailReceiptDownloadLink(c *gin.Context) {
	grant, err := s.documentsSvc.EmailReceiptDownloadLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"expires_at": grant.ExpiresAt, "max_downloads": grant.MaxDownloads}})
}

func (s *Server) RevokeDownloadToken(c *gin.Context) {
	if err := s.tokenSvc.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RedeemDownload serves the artifact behind a download link. The secret
// arrives in the path; no session or user header is involved.
func (s *Server) RedeemDownload(c *gin.Context) {
	download, err := s.documentsSvc.Redeem(c.Request.Context(), c.Param("secret"), c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.FileAttachment(download.Path, download.Filename)
}
