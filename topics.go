package identity

// Bus topic names used by the services.
const (
	// TopicUserResource carries user lifecycle events.
	TopicUserResource = "user.resource"
	// TopicRoleResource carries role lifecycle events.
	TopicRoleResource = "role.resource"
	// TopicNotification carries rendered sendEmail payloads.
	TopicNotification = "notification"
)

// Lifecycle events emitted on the resource topics.
const (
	EventRegistered      = "registered"
	EventCreated         = "created"
	EventActivated       = "activated"
	EventPasswordChanged = "passwordChanged"
	EventEmailChanged    = "emailIdChanged"
	EventUnregistered    = "unregistered"
	EventSendEmail       = "sendEmail"
)
