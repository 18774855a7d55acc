package skillconfig

import (
	"github.com/invopop/jsonschema"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// GenerateSchema returns the JSON schema of the configuration document,
// suitable for validating hand-edited documents.
func GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&skilltypes.ConfigDocument{})
}
