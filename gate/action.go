package gate

// Action describes the kind of operation a subject wants to perform.
type Action string

const (
	ActionView     Action = "view"
	ActionList     Action = "list"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionComplete Action = "complete"
	ActionComment  Action = "comment"
	ActionAttach   Action = "attach"
	ActionDecide   Action = "decide"
	ActionManage   Action = "manage"
)
