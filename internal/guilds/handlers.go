package guilds

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mprlab/authgate/internal/authcore"
)

// Clock abstracts time for handler tests.
type Clock interface {
	Now() time.Time
}

// MountGuildRoutes registers the guild CRUD endpoints on an authenticated
// router group.
func MountGuildRoutes(router gin.IRouter, store Store, clock Clock, logger *zap.Logger) {
	if clock == nil {
		clock = authcore.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router.POST("/guilds", func(contextGin *gin.Context) {
		var inbound struct {
			ServerID string `json:"server_id" binding:"required"`
			Name     string `json:"name" binding:"required"`
		}
		if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		guild := Guild{
			ID:        uuid.NewString(),
			ServerID:  strings.TrimSpace(inbound.ServerID),
			Name:      strings.TrimSpace(inbound.Name),
			CreatedAt: clock.Now(),
		}
		if saveErr := store.Save(contextGin, guild); saveErr != nil {
			logger.Error("guild save failed", zap.Error(saveErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusCreated, guild)
	})

	router.GET("/guilds", func(contextGin *gin.Context) {
		listed, listErr := store.List(contextGin)
		if listErr != nil {
			logger.Error("guild list failed", zap.Error(listErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, listed)
	})

	router.DELETE("/guilds/:id", func(contextGin *gin.Context) {
		deleteErr := store.Delete(contextGin, contextGin.Param("id"))
		if deleteErr != nil {
			if errors.Is(deleteErr, ErrGuildNotFound) {
				contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "guild_not_found"})
				return
			}
			logger.Error("guild delete failed", zap.Error(deleteErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.Status(http.StatusNoContent)
	})
}
