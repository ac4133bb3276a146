package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCodeTriples_TopLevelSymbol(t *testing.T) {
	triples := ExtractCodeTriples(ChunkMetadata{
		FilePath:   "internal/store/columnar.go",
		SymbolName: "NewColumnarBackend",
		Imports:    []string{"context", "fmt"},
	}, "chunk_1")

	require.NotEmpty(t, triples)

	var foundModuleContains, foundDefinedIn bool
	for _, tr := range triples {
		if tr.Predicate == "contains" && tr.Object == "NewColumnarBackend" {
			foundModuleContains = true
			assert.Equal(t, "columnar", tr.Subject)
		}
		if tr.Predicate == "defined_in" {
			foundDefinedIn = true
			assert.Equal(t, "columnar", tr.Object)
		}
	}
	assert.True(t, foundModuleContains)
	assert.True(t, foundDefinedIn)
}

func TestExtractCodeTriples_ClassMethod(t *testing.T) {
	triples := ExtractCodeTriples(ChunkMetadata{
		FilePath:   "svc.py",
		SymbolName: "process",
		ClassName:  "JobWorker",
	}, "chunk_2")

	var found bool
	for _, tr := range triples {
		if tr.Subject == "JobWorker" && tr.Predicate == "contains" && tr.Object == "process" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExtractCodeTriples_NoSymbolNameYieldsNothing(t *testing.T) {
	triples := ExtractCodeTriples(ChunkMetadata{FilePath: "a.go"}, "chunk_3")
	assert.Empty(t, triples)
}

func TestExtractCodeTriples_FallbackImportsFromRawText(t *testing.T) {
	triples := ExtractCodeTriples(ChunkMetadata{
		FilePath:   "main.go",
		SymbolName: "main",
		RawText:    "import \"fmt\"\nimport \"os\"\n",
	}, "chunk_4")

	var imports []string
	for _, tr := range triples {
		if tr.Predicate == "imports" {
			imports = append(imports, tr.Object)
		}
	}
	assert.ElementsMatch(t, []string{"fmt", "os"}, imports)
}
