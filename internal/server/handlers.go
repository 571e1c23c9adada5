package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edwardmadi/eurodollar-protocol/internal/ingestion"
	"github.com/edwardmadi/eurodollar-protocol/internal/query"
	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// SubmitCommand parses the request body as a command of the type named in
// the path, hands it to the core loop, and reports the core's verdict. The
// same JSON wire format is accepted on the NATS subjects.
func SubmitCommand(submitter *ingestion.Submitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		commandType := c.Param("type")

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
			return
		}

		cmd, err := ingestion.ParseCommand(commandType, body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := submitter.Submit(c.Request.Context(), cmd); err != nil {
			c.JSON(rejectStatus(err), gin.H{
				"accepted": false,
				"reason":   token.RejectReason(err),
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"accepted":        true,
			"idempotency_key": cmd.IdempotencyKey(),
		})
	}
}

// rejectStatus maps the core's failure taxonomy onto HTTP status codes.
func rejectStatus(err error) int {
	switch token.RejectReason(err) {
	case "unauthorized", "blocked":
		return http.StatusForbidden
	case "paused", "already_initialized", "not_initialized":
		return http.StatusConflict
	case "insufficient_balance", "insufficient_allowance", "insufficient_frozen", "overflow":
		return http.StatusUnprocessableEntity
	case "expired_signature", "invalid_signature":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func GetBalance(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		address, ok := normalizedAddress(c, c.Param("address"))
		if !ok {
			return
		}
		resp, err := qs.GetBalance(c.Request.Context(), address)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query balance failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetAllowance(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := normalizedAddress(c, c.Param("owner"))
		if !ok {
			return
		}
		spender, ok := normalizedAddress(c, c.Param("spender"))
		if !ok {
			return
		}
		resp, err := qs.GetAllowance(c.Request.Context(), owner, spender)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query allowance failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetNonce(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := normalizedAddress(c, c.Param("address"))
		if !ok {
			return
		}
		resp, err := qs.GetNonce(c.Request.Context(), owner)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query nonce failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetStatus(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := qs.GetStatus(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query status failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetDomainSeparator(domainSeparator string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"domain_separator": domainSeparator})
	}
}

func GetBlocked(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		address, ok := normalizedAddress(c, c.Param("address"))
		if !ok {
			return
		}
		resp, err := qs.GetBlocked(c.Request.Context(), address)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query blocklist failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetBlocklist(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := qs.GetBlocklist(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query blocklist failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetRoleHolders(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.Param("role")
		resp, err := qs.GetRoleHolders(c.Request.Context(), role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query roles failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetRolesOf(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		address, ok := normalizedAddress(c, c.Param("address"))
		if !ok {
			return
		}
		resp, err := qs.GetRolesOf(c.Request.Context(), address)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query roles failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetTransferHistory(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		address, ok := normalizedAddress(c, c.Param("address"))
		if !ok {
			return
		}

		limit := 50
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1..500"})
				return
			}
			limit = parsed
		}

		var beforeSequence *int64
		if raw := c.Query("before"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an integer sequence"})
				return
			}
			beforeSequence = &parsed
		}

		entries, err := qs.GetTransferHistory(c.Request.Context(), address, limit, beforeSequence)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query history failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func VerifyIntegrity(qs *query.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := qs.VerifyIntegrity(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "integrity check failed"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// normalizedAddress validates a path parameter and returns the canonical
// lowercase hex form the projections are keyed by.
func normalizedAddress(c *gin.Context, raw string) (string, bool) {
	addr, err := token.ParseAddress(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address: " + raw})
		return "", false
	}
	return addr.String(), true
}
