package authcore

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SubjectContextKey is where Authenticate stores the verified caller id.
const SubjectContextKey = "auth_subject"

// Authenticate extracts a bearer access token from the Authorization header
// and, when it verifies, annotates the request with the embedded subject.
// It never rejects: anonymous and bad-token requests both pass through
// unannotated, and route-level authorization decides whether that matters.
func Authenticate(signer *TokenSigner) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		authorizationHeader := contextGin.GetHeader("Authorization")
		if strings.HasPrefix(authorizationHeader, bearerPrefix) {
			if subject, verifyErr := signer.Verify(authorizationHeader, TokenKindAccess); verifyErr == nil {
				contextGin.Set(SubjectContextKey, subject)
			}
		}
		contextGin.Next()
	}
}

// RequireIdentity aborts with 401 unless Authenticate established a subject
// earlier in the chain.
func RequireIdentity() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		if _, authenticated := SubjectFromContext(contextGin); !authenticated {
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		contextGin.Next()
	}
}

// SubjectFromContext returns the verified caller id, if any.
func SubjectFromContext(contextGin *gin.Context) (string, bool) {
	value, found := contextGin.Get(SubjectContextKey)
	if !found {
		return "", false
	}
	subject, ok := value.(string)
	if !ok || subject == "" {
		return "", false
	}
	return subject, true
}
