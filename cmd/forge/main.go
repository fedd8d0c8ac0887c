// Command forge drives the orchestrator: it loads a phase definition and a
// run configuration, schedules phases across their dependency graph, and
// persists a run record as it goes.
package main

func main() {
	Execute()
}
