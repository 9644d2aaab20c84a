package core

// DependencyKind tags why one task depends on another.
type DependencyKind string

const (
	// DependencyData means the dependent consumes a data artifact the
	// prerequisite produces (e.g. a generated schema or interface).
	DependencyData DependencyKind = "data"
	// DependencyFile means the dependent touches files the prerequisite
	// also touches, so ordering avoids a guaranteed conflict.
	DependencyFile DependencyKind = "file"
	// DependencySemantic means the dependency was inferred by the
	// advisor from free-form reasoning about the two task descriptions.
	DependencySemantic DependencyKind = "semantic"
)

// DependencyType is a tagged edge annotation: Data carries no payload,
// File carries the overlapping paths, Semantic carries the advisor's
// stated reason.
type DependencyType struct {
	Kind   DependencyKind
	Paths  []string // populated when Kind == DependencyFile
	Reason string   // populated when Kind == DependencySemantic
}

// NewDataDependency returns a Data-kind dependency annotation.
func NewDataDependency() DependencyType {
	return DependencyType{Kind: DependencyData}
}

// NewFileDependency returns a File-kind dependency annotation over paths.
func NewFileDependency(paths ...string) DependencyType {
	return DependencyType{Kind: DependencyFile, Paths: paths}
}

// NewSemanticDependency returns a Semantic-kind dependency annotation.
func NewSemanticDependency(reason string) DependencyType {
	return DependencyType{Kind: DependencySemantic, Reason: reason}
}

// DependencyEdge is a directed edge from a prerequisite task to a dependent
// task, annotated with why the edge exists.
type DependencyEdge struct {
	From TaskID
	To   TaskID
	Type DependencyType
}
