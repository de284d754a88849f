// Package core defines the shared workflow data model for BioAI.
//
// A WorkflowState is the single record threaded through every agent
// invocation of a workflow run. Agents never mutate the state they receive;
// they return a Delta that the engine applies to produce the successor
// state. The package also defines the Agent contract and the ordered
// Registry used for capability-based dispatch.
package core
