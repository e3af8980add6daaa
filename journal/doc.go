// Package journal provides an in-memory core.Journal recording every message
// exchanged between the boundary and agents, grouped by query identifier.
// It backs the "messages" diagnostic of the mesh.
package journal
