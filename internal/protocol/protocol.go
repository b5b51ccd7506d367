// Package protocol defines the exported structure format, the only contract
// between the compiler and its renderers and stores.
package protocol

import "encoding/json"

const Version = "1.0"

// Document types.
const (
	TypeStructure = "STRUCTURE"
)

// BaseMessage lets readers route a JSON document by type before decoding it.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
