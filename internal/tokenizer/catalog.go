package tokenizer

import "sort"

// DefaultModel is used when no model is configured or the configured model is
// unknown.
const DefaultModel = "gpt-3.5-turbo"

// ModelSpec describes one catalog model. MaxTokens of zero means the model
// imposes no context limit relevant here.
type ModelSpec struct {
	Encoding  string
	MaxTokens int
}

var modelCatalog = map[string]ModelSpec{
	"gpt-3.5-turbo":          {Encoding: "cl100k_base", MaxTokens: 4096},
	"gpt-3.5-turbo-16k":      {Encoding: "cl100k_base", MaxTokens: 16384},
	"gpt-4":                  {Encoding: "cl100k_base", MaxTokens: 8192},
	"gpt-4-32k":              {Encoding: "cl100k_base", MaxTokens: 32768},
	"gpt-4-turbo":            {Encoding: "cl100k_base", MaxTokens: 128000},
	"gpt-4o":                 {Encoding: "o200k_base", MaxTokens: 128000},
	"gpt-4o-mini":            {Encoding: "o200k_base", MaxTokens: 128000},
	"text-embedding-ada-002": {Encoding: "cl100k_base", MaxTokens: 0},
}

// AvailableModels lists the catalog model names, sorted.
func AvailableModels() []string {
	modelNames := make([]string, 0, len(modelCatalog))
	for modelName := range modelCatalog {
		modelNames = append(modelNames, modelName)
	}
	sort.Strings(modelNames)
	return modelNames
}

// IsKnownModel reports whether the catalog contains modelName.
func IsKnownModel(modelName string) bool {
	_, known := modelCatalog[modelName]
	return known
}

// ResolveModel maps a requested model onto the catalog, substituting
// DefaultModel for unknown names. The second result reports whether the
// request was already valid, allowing callers to warn about the substitution.
func ResolveModel(modelName string) (string, bool) {
	if modelName == "" {
		return DefaultModel, false
	}
	if IsKnownModel(modelName) {
		return modelName, true
	}
	return DefaultModel, false
}

// MaxTokens returns the model's context limit, or zero when unlimited or
// unknown.
func MaxTokens(modelName string) int {
	return modelCatalog[modelName].MaxTokens
}
