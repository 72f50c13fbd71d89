package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/services"
	"github.com/charlesng35/workpass/pkg/response"
)

// writeError renders err and adds Retry-After when a code cooldown is active.
func writeError(c *gin.Context, err error) {
	var cooldown *services.CooldownError
	if errors.As(err, &cooldown) {
		c.Header("Retry-After", strconv.Itoa(cooldown.RetryAfterSeconds()))
	}
	response.Error(c, err)
}
