package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/garyellow/line-carousel-composer/internal/audience"
	"github.com/garyellow/line-carousel-composer/internal/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultTagLimit = 20
	maxTagLimit     = 100
	maxImportBatch  = 5000
)

var (
	errBadLimit       = errors.New("limit must be a positive integer")
	errTooManyMembers = fmt.Errorf("at most %d members per request", maxImportBatch)
)

// estimateKey identifies the caller for debouncing and rate limiting:
// the editing session when given, else the client address.
func estimateKey(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-Session-Id")); id != "" {
		return "session:" + id
	}
	return "ip:" + c.ClientIP()
}

func (a *Application) estimateAudience(c *gin.Context) {
	key := estimateKey(c)
	if !a.estimateLimiter.Allow(key) {
		a.rateLimited(c, a.estimateLimiter.RetryAfter(key))
		return
	}

	var target audience.Target
	if err := c.ShouldBindJSON(&target); err != nil {
		a.badRequest(c, "target", err)
		return
	}

	est, err := a.estimator.Estimate(c.Request.Context(), key, target)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

func (a *Application) searchTags(c *gin.Context) {
	limit := defaultTagLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.badRequest(c, "limit", errBadLimit)
			return
		}
		limit = min(n, maxTagLimit)
	}

	tags, err := a.db.SearchTags(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		a.respondError(c, err)
		return
	}
	if tags == nil {
		tags = []storage.TagCount{}
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// importMembers upserts the tagged member list the audience estimate counts.
func (a *Application) importMembers(c *gin.Context) {
	var members []*storage.Member
	if err := c.ShouldBindJSON(&members); err != nil {
		a.badRequest(c, "members", err)
		return
	}
	if len(members) > maxImportBatch {
		a.badRequest(c, "members", errTooManyMembers)
		return
	}

	valid := members[:0]
	for _, m := range members {
		if m != nil && strings.TrimSpace(m.ID) != "" {
			valid = append(valid, m)
		}
	}

	if err := a.db.SaveMembersBatch(c.Request.Context(), valid); err != nil {
		a.respondError(c, err)
		return
	}
	a.logger.WithField("members", len(valid)).InfoContext(c.Request.Context(), "Audience members imported")
	c.JSON(http.StatusOK, gin.H{"imported": len(valid)})
}
