package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tandem-app/checkin-server-go/internal/model"
	"github.com/tandem-app/checkin-server-go/internal/repository"
	"github.com/tandem-app/checkin-server-go/internal/util"
)

type contextKey string

const ParticipantContextKey contextKey = "participant"

func GetParticipant(ctx context.Context) *model.Participant {
	if participant, ok := ctx.Value(ParticipantContextKey).(*model.Participant); ok {
		return participant
	}
	return nil
}

type AuthMiddleware struct {
	participantRepo repository.ParticipantRepository
}

func NewAuthMiddleware(participantRepo repository.ParticipantRepository) *AuthMiddleware {
	return &AuthMiddleware{participantRepo: participantRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		participant, err := m.participantRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if participant == nil {
			log.Warn().Msg("auth middleware: invalid token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), ParticipantContextKey, participant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken prefers the query parameter because EventSource cannot set
// headers.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
