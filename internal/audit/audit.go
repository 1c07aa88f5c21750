package audit

import (
	"time"
)

// ReadAuthority gates the audit trail listing.
const ReadAuthority = "audit.read"

// Log is one append-only record of an identity-mutating action. Rows are
// never updated or deleted by the application.
type Log struct {
	ID        string                 `json:"id" gorm:"primaryKey;column:id"`
	UserID    string                 `json:"user_id" gorm:"column:user_id;index;not null"`
	Action    string                 `json:"action" gorm:"column:action;not null"`
	Resource  string                 `json:"resource" gorm:"column:resource;not null"`
	Payload   map[string]interface{} `json:"payload" gorm:"column:payload;serializer:json"`
	IPAddress string                 `json:"ip_address" gorm:"column:ip_address"`
	UserAgent string                 `json:"user_agent" gorm:"column:user_agent"`
	CreatedAt time.Time              `json:"created_at" gorm:"column:created_at"`
}

func (Log) TableName() string {
	return "audit_logs"
}

type Repository interface {
	Create(entry *Log) error
	List(orgUserIDs []string, limit, offset int) ([]*Log, error)
	ListAll(limit, offset int) ([]*Log, error)
}

// Recorder is what the rest of the identity core depends on.
type Recorder interface {
	Record(actorUserID, action, resource string, extra map[string]interface{}, ipAddress, userAgent string) error
}

// UserDirectory scopes the listing: tenant admins only see entries written
// by users of their own organization.
type UserDirectory interface {
	UserIDsForOrg(orgID string) ([]string, error)
}
