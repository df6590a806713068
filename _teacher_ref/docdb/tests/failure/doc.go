// Package failure provides test helpers for crash simulation, recovery, and failure testing.
package failure

import "github.com/kartikbazzad/docdb/internal/docdb"

// defaultColl is the collection name used by failure tests (matches docdb.DefaultCollection).
const defaultColl = docdb.DefaultCollection
