package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const operatorKey = "crm_operator"

// CRMAuthenticator resolves a CRM token (static token or session JWT) to an operator name.
type CRMAuthenticator interface {
	Authenticate(token string) (string, bool)
}

// CRMAuthRequired accepts the token from the x-crm-token header or the token query parameter.
func CRMAuthRequired(authn CRMAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("x-crm-token")
		if token == "" {
			token = c.Query("token")
		}
		operator, ok := authn.Authenticate(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		c.Set(operatorKey, operator)
		c.Next()
	}
}

// GetOperator returns the authenticated CRM operator (must be used after CRMAuthRequired).
func GetOperator(c *gin.Context) string {
	return c.GetString(operatorKey)
}
