package middleware

import (
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"
)

// OwnerHeader carries the opaque id of the user a request acts for.
const OwnerHeader = "X-Owner-ID"

const ownerKey = "owner"

// CORSMiddleware allows browser clients from any origin.
func CORSMiddleware() func(c *ginext.Context) {
	return func(c *ginext.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+OwnerHeader)
		c.Header("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// OwnerMiddleware stores the owner id of the request, read from OwnerHeader.
// Authentication happens upstream; the id is taken as given.
func OwnerMiddleware() func(c *ginext.Context) {
	return func(c *ginext.Context) {
		c.Set(ownerKey, strings.TrimSpace(c.GetHeader(OwnerHeader)))
		c.Next()
	}
}

// Owner returns the owner id stored by OwnerMiddleware.
func Owner(c *ginext.Context) string {
	return c.GetString(ownerKey)
}
