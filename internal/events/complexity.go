package events

// QueryRejected is emitted when a query document is refused before execution
// because its alias fan-out exceeds the configured limits.
type QueryRejected struct {
	OperationName string
	Reason        error
	Aliases       int
	Level         int
	LevelAliases  int
}
