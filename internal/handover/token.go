package handover

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/config"
)

// DeliveryStatus is the operator-facing view of one destination's state.
type DeliveryStatus struct {
	DestinationID uuid.UUID  `json:"destinationId"`
	Attempts      int        `json:"attempts"`
	Succeeded     bool       `json:"succeeded"`
	SucceededAt   *time.Time `json:"succeededAt,omitempty"`
	LastError     *string    `json:"lastError,omitempty"`
	ExternalID    *string    `json:"externalId,omitempty"`
}

// StatusService issues signed status links and resolves them back to
// per-destination delivery state. The token carries only the lead id; the
// signature keeps the link from being enumerable.
type StatusService struct {
	repo HandoverRepository
	cfg  config.HandoverConfig
}

func NewStatusService(repo HandoverRepository, cfg config.HandoverConfig) *StatusService {
	return &StatusService{repo: repo, cfg: cfg}
}

// IssueToken signs a status token for a lead's handover.
func (s *StatusService) IssueToken(leadID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": leadID.String(),
		"use": "handover_status",
		"exp": now.Add(s.cfg.GetStatusTokenTTL()).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.GetStatusTokenSecret()))
}

// Resolve verifies a status token and returns the delivery state for its lead.
func (s *StatusService) Resolve(ctx context.Context, token string) (uuid.UUID, []DeliveryStatus, error) {
	leadID, err := s.parse(token)
	if err != nil {
		return uuid.Nil, nil, apperr.Validation("invalid status token")
	}

	deliveries, err := s.repo.ListDeliveriesByLead(ctx, leadID)
	if err != nil {
		return uuid.Nil, nil, apperr.Internal("failed to load delivery state", err)
	}

	out := make([]DeliveryStatus, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, DeliveryStatus{
			DestinationID: d.DestinationID,
			Attempts:      d.Attempts,
			Succeeded:     d.Succeeded(),
			SucceededAt:   d.SucceededAt,
			LastError:     d.LastError,
			ExternalID:    d.ExternalID,
		})
	}
	return leadID, out, nil
}

func (s *StatusService) parse(token string) (uuid.UUID, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.GetStatusTokenSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["use"] != "handover_status" {
		return uuid.Nil, fmt.Errorf("wrong token use")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(sub)
}
