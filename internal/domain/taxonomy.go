package domain

// NodeType classifies an ancestor in the task manager's tree.
type NodeType string

const (
	NodeCategory NodeType = "category"
	NodeProject  NodeType = "project"
	NodeRoot     NodeType = "root"
)

// Sentinel parent ids and the default project name.
const (
	RootID       = "root"
	UnassignedID = "unassigned"
	InboxProject = "Inbox"
)

// TaxonomyNode is one ancestor in a parent chain.
type TaxonomyNode struct {
	ID       string
	ParentID string
	Type     NodeType
	Title    string
}
