package sandbox

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// UnprivilegedContent is everything a content thread needs to host its first document
type UnprivilegedContent struct {
	Namespace       id.NamespaceID               `json:"namespace"`
	Pipeline        id.PipelineID                `json:"pipeline"`
	BrowsingContext id.BrowsingContextID         `json:"browsing_context"`
	TopLevel        id.TopLevelBrowsingContextID `json:"top_level"`
	Parent          *id.PipelineID               `json:"parent,omitempty"`
	URL             string                       `json:"url"`
	Generation      uint64                       `json:"generation"`
	LoadID          id.LoadID                    `json:"load_id"`

	// ScriptEndpoint is the one-shot token for the event loop receiver
	ScriptEndpoint string `json:"script_endpoint"`
	// ConstellationEndpoint names the published constellation sender
	ConstellationEndpoint string `json:"constellation_endpoint"`
	// ResourceEndpoint names the published resource loader; opaque to the constellation
	ResourceEndpoint string `json:"resource_endpoint"`

	ScriptsEnabled bool          `json:"scripts_enabled"`
	ScriptTimeout  time.Duration `json:"script_timeout"`
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil)
)

// Encode serializes content for a Spawner
func Encode(content *UnprivilegedContent) ([]byte, error) {
	raw, err := sonic.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

// Decode reverses Encode
func Decode(payload []byte) (*UnprivilegedContent, error) {
	raw, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	var content UnprivilegedContent
	if err := sonic.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := content.LoadID.Validate(); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &content, nil
}
