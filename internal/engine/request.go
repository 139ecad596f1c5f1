package engine

import (
	"context"

	"customfields/internal/notifier"
)

// Permissions answers capability checks for the acting user.
type Permissions interface {
	CurrentActorCan(capability string, entityID int64) bool
}

// PermissionFunc adapts a function to Permissions.
type PermissionFunc func(capability string, entityID int64) bool

func (f PermissionFunc) CurrentActorCan(capability string, entityID int64) bool {
	return f(capability, entityID)
}

// Request carries the state of one edit-form build or save. It is built by
// the platform per HTTP request and never stored on a Type.
type Request struct {
	Ctx      context.Context
	EntityID int64
	// Saving is set while the save pipeline rebuilds fields; values are
	// then read from Submitted instead of storage.
	Saving    bool
	Autosave  bool
	UserID    string
	Perms     Permissions
	Submitted map[string]string
	Notifier  *notifier.Notifier
}

func (r *Request) context() context.Context {
	if r.Ctx == nil {
		return context.Background()
	}
	return r.Ctx
}

// Can checks a capability for the current entity. A request without
// permissions can do nothing.
func (r *Request) Can(capability string) bool {
	if r.Perms == nil {
		return false
	}
	return r.Perms.CurrentActorCan(capability, r.EntityID)
}

func (r *Request) canAll(caps []string) bool {
	for _, c := range caps {
		if !r.Can(c) {
			return false
		}
	}
	return true
}

func (r *Request) transientKey() string {
	return notifier.TransientKey(r.EntityID, r.UserID)
}

func (r *Request) queueUserWarning(message string) {
	if r.Notifier != nil {
		r.Notifier.QueueUserWarning(message, "")
	}
}

func (r *Request) queueFieldWarning(fieldID string) {
	if r.Notifier != nil {
		r.Notifier.QueueFieldWarning(fieldID, "")
	}
}
