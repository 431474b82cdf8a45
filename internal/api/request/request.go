// Package request parses path parameters and bodies, answering 400 on bad input.
package request

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/nano-editor/internal/api/respond"
)

// ID parses the UUID path parameter param.
func ID(c *ginext.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid %s: %v", param, err))
		return uuid.Nil, false
	}
	return id, true
}

// Bind decodes the JSON body into v.
func Bind(c *ginext.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return false
	}
	return true
}
