package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mprlab/authgate/internal/authcore"
)

// MountAuthRoutes registers /auth/register, /auth/login, and /auth/refresh.
// Client-facing auth failures map to 401/409 without detail; anything else
// is a server fault and surfaces as 500.
func MountAuthRoutes(router gin.IRouter, service *authcore.AuthService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	router.POST("/auth/register", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		user, registerErr := service.Register(contextGin.Request.Context(), inbound.Email, inbound.Password)
		if registerErr != nil {
			if errors.Is(registerErr, authcore.ErrDuplicateUser) {
				contextGin.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "duplicate_user"})
				return
			}
			if errors.Is(registerErr, authcore.ErrPasswordTooLong) {
				contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "password_too_long"})
				return
			}
			logger.Error("register failed", zap.Error(registerErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusCreated, gin.H{
			"id":    user.ID,
			"email": user.Email,
		})
	})

	router.POST("/auth/login", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		pair, loginErr := service.Login(contextGin.Request.Context(), inbound.Email, inbound.Password)
		if loginErr != nil {
			if errors.Is(loginErr, authcore.ErrInvalidCredentials) {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
				return
			}
			logger.Error("login failed", zap.Error(loginErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, pair)
	})

	router.POST("/auth/refresh", func(contextGin *gin.Context) {
		var inbound struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		pair, refreshErr := service.Refresh(contextGin.Request.Context(), inbound.RefreshToken)
		if refreshErr != nil {
			if errors.Is(refreshErr, authcore.ErrInvalidToken) {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
				return
			}
			logger.Error("refresh failed", zap.Error(refreshErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, pair)
	})
}

// MountMetricsRoute exposes the auth counters. Mount it on an authenticated
// group.
func MountMetricsRoute(router gin.IRouter, recorder *authcore.CounterMetrics) {
	router.GET("/metrics", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, recorder.Snapshot())
	})
}
