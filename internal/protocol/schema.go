package protocol

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"
)

// Schemas returns JSON Schemas for every wire payload, keyed by message
// kind. Client codebases generate their decoders from this export.
func Schemas() map[string]*jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	return map[string]*jsonschema.Schema{
		"envelope":                 r.Reflect(&Envelope{}),
		string(KindMove):           r.Reflect(&MovePayload{}),
		string(KindResign):         r.Reflect(&ResignPayload{}),
		string(KindChat):           r.Reflect(&ChatPayload{}),
		string(KindRematchPropose): r.Reflect(&RematchProposePayload{}),
		string(KindRematchAccept):  r.Reflect(&RematchReplyPayload{}),
		string(KindRematchDecline): r.Reflect(&RematchReplyPayload{}),
		string(KindRematchReady):   r.Reflect(&RematchReadyPayload{}),
		string(KindElimination):    r.Reflect(&EliminationPayload{}),
		string(KindSyncRequest):    r.Reflect(&SyncRequestPayload{}),
		string(KindSyncResponse):   r.Reflect(&SyncResponsePayload{}),
	}
}

// MarshalSchemas renders the schema set as a single deterministic JSON
// document (kinds sorted), suitable for committing alongside clients.
func MarshalSchemas() ([]byte, error) {
	schemas := Schemas()
	keys := make([]string, 0, len(schemas))
	for k := range schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]json.RawMessage, len(schemas))
	for _, k := range keys {
		raw, err := json.Marshal(schemas[k])
		if err != nil {
			return nil, err
		}
		ordered[k] = raw
	}
	return json.MarshalIndent(ordered, "", "  ")
}
