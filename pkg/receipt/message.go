package receipt

import "encoding/json"

// RawMessage is an opaque, byte-level JSON payload: initMsg, query
// messages and execute messages are never interpreted by the core, only
// transported. Strongly typed wrappers belong in user code (spec.md §9).
type RawMessage = json.RawMessage
