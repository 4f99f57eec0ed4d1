// Package model contains the in-memory representation of workflow
// definitions used by the chemflow engine.
//
// A workflow is loaded from a YAML document into the structures defined in
// the `graph` and `state` sub-packages; `types` holds the error taxonomy.
package model
