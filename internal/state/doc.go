// Package state provides the durable per-session stores: the ordered chat
// record log and the rolling summary. Both persist as whole JSON documents
// written with a temp-file-then-rename discipline, so a crash at any point
// leaves either the previous complete state or the new complete state on
// disk, never a partial write.
package state
