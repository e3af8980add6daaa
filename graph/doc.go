// Package graph decodes graph documents into node specifications.
//
// A document is an ordered list of nodes:
//
//	[
//	  {"name": "default", "expertise": [0, 0, 0, 0],
//	   "neighbors": [{"name": "helper", "expertise": [1, 1, 1, 1]}]},
//	  {"name": "helper", "expertise": [1, 1, 1, 1]}
//	]
//
// The same structure is accepted as YAML. Missing arrays decode to unset
// vectors, never to zero vectors.
package graph
