package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

const identityKey = "identity"

// SetIdentity stores the verified caller on the request context
func SetIdentity(c *gin.Context, id domain.Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the caller stored by SetIdentity
func IdentityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(domain.Identity); ok {
			return id
		}
	}
	return domain.Identity{}
}
