package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/google/uuid"
)

// Service writes the append-only audit trail. It fails closed: a mutation
// attempted without a known actor is rejected and the error propagates to
// the caller instead of being swallowed.
type Service struct {
	repo   Repository
	users  UserDirectory
	logger *slog.Logger
}

func NewService(repo Repository, users UserDirectory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, users: users, logger: logger}
}

// Record appends one audit entry. The stored payload always carries
// actor_user_id, action, resource and target_ids alongside any extra fields
// the caller supplied.
func (s *Service) Record(actorUserID, action, resource string, extra map[string]interface{}, ipAddress, userAgent string) error {
	if strings.TrimSpace(actorUserID) == "" {
		s.logger.Error("audit write rejected: blank actor", "action", action, "resource", resource)
		return internal.ErrMissingActor
	}

	payload := map[string]interface{}{
		"actor_user_id": actorUserID,
		"action":        action,
		"resource":      resource,
		"target_ids":    deriveTargetIDs(extra),
	}
	for k, v := range extra {
		if _, reserved := payload[k]; reserved {
			continue
		}
		payload[k] = v
	}

	entry := &Log{
		ID:        uuid.NewString(),
		UserID:    actorUserID,
		Action:    action,
		Resource:  resource,
		Payload:   payload,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(entry); err != nil {
		s.logger.Error("audit write failed", "action", action, "resource", resource, "error", err)
		return internal.NewInternalError("failed to write audit log", err)
	}

	return nil
}

// List returns the newest entries first. Super admins see the whole trail;
// everyone else only sees entries written by users of their own
// organization.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Log, error) {
	actor, err := internal.RequireAuthority(ctx, ReadAuthority)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	if actor.IsSuperAdmin() {
		entries, err := s.repo.ListAll(limit, offset)
		if err != nil {
			return nil, internal.NewInternalError("failed to list audit logs", err)
		}
		return entries, nil
	}

	userIDs, err := s.users.UserIDsForOrg(actor.OrgID)
	if err != nil {
		return nil, internal.NewInternalError("failed to scope audit listing", err)
	}
	if len(userIDs) == 0 {
		return []*Log{}, nil
	}

	entries, err := s.repo.List(userIDs, limit, offset)
	if err != nil {
		return nil, internal.NewInternalError("failed to list audit logs", err)
	}
	return entries, nil
}

// deriveTargetIDs checks, in order, an explicit target_ids list, then ids,
// then a single id.
func deriveTargetIDs(extra map[string]interface{}) []string {
	if extra == nil {
		return []string{}
	}
	if raw, ok := extra["target_ids"]; ok {
		if ids := toStringSlice(raw); ids != nil {
			return ids
		}
	}
	if raw, ok := extra["ids"]; ok {
		if ids := toStringSlice(raw); ids != nil {
			return ids
		}
	}
	if raw, ok := extra["id"]; ok {
		if id, ok := raw.(string); ok && id != "" {
			return []string{id}
		}
	}
	return []string{}
}

func toStringSlice(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
