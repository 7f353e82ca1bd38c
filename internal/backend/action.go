package backend

// ActionType is the command carried by a DomainAction.
type ActionType string

const (
	ActionIntrospect ActionType = "INTROSPECT"
	ActionRestart    ActionType = "RESTART"
)

// DomainAction is a lifecycle command for one domain. A nil action or an empty
// Type is rejected as an invalid request.
type DomainAction struct {
	Type ActionType `json:"action"`
}

func NewDomainAction(t ActionType) *DomainAction {
	return &DomainAction{Type: t}
}
