package model

// Identity is the resolved requester of a request: who they are and which tenant they act for.
type Identity struct {
	UserID   string
	TenantID string
}
