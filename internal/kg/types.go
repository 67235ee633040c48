package kg

// Entity is a node in the medical knowledge graph. Type is one of the
// fixed vocabulary in EntityTypes; anything else is normalized by
// SanitizeLabel before it reaches the store.
type Entity struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Relation is a directed typed edge between two entities, identified by
// the (subject, predicate, object) triple.
type Relation struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Counters reports what a write actually changed in the store,
// mirroring the driver's result summary.
type Counters struct {
	NodesCreated         int
	RelationshipsCreated int
	PropertiesSet        int
}

// Node is a retrieved graph node with its store-assigned identity.
type Node struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Edge is a retrieved relationship between two nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Subgraph is a node/edge set around one or more seed entities, shaped
// for visualization payloads.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// PathHop is one relationship step along a path between two entities.
type PathHop struct {
	FromName string `json:"from"`
	Relation string `json:"relation"`
	ToName   string `json:"to"`
}

// Path is a sequence of hops connecting a start node to an end node.
type Path struct {
	Start Node      `json:"start"`
	End   Node      `json:"end"`
	Hops  []PathHop `json:"hops"`
}

// Neighbor is a node reached by traversal, annotated with its hop
// distance from the seed and the relation that reached it.
type Neighbor struct {
	Node     Node   `json:"node"`
	Relation string `json:"relation"`
	Hops     int    `json:"hops"`
}
