package domain

// Command is an external program run by the memoized command runner.
type Command struct {
	// Args holds the program and its arguments.
	Args []string
	// Dir is the working directory.
	Dir string
	// Env holds variables added on top of the inherited allow-list.
	Env map[string]string
}
