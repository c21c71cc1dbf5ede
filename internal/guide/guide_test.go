package guide

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchLifecyclePromptDefinition(t *testing.T) {
	p := &BranchLifecyclePrompt{}
	def := p.Definition()
	assert.Equal(t, "branch-lifecycle", def.Name)
	require.Len(t, def.Arguments, 1)
	assert.Equal(t, "branch_name", def.Arguments[0].Name)
	assert.False(t, def.Arguments[0].Required)
}

func TestBranchLifecyclePromptGetSubstitutesName(t *testing.T) {
	p := &BranchLifecyclePrompt{}

	withName, err := p.Get(map[string]string{"branch_name": "pricing-experiment"})
	require.NoError(t, err)
	require.Len(t, withName.Messages, 1)
	assert.Contains(t, withName.Messages[0].Content.Text, "pricing-experiment")

	withoutName, err := p.Get(nil)
	require.NoError(t, err)
	assert.Contains(t, withoutName.Messages[0].Content.Text, "<branch_name>")
}

func TestSchemaReferenceResource(t *testing.T) {
	r := &SchemaReferenceResource{}
	def := r.Definition()
	assert.Equal(t, "hatidata://schema-reference", def.URI)
	assert.Equal(t, "text/markdown", def.MimeType)

	result, err := r.Read()
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.True(t, strings.Contains(result.Contents[0].Text, "_memory"))
	assert.True(t, strings.Contains(result.Contents[0].Text, "_cot"))
	assert.True(t, strings.Contains(result.Contents[0].Text, "_triggers"))
}

func TestToolReferenceResource(t *testing.T) {
	r := &ToolReferenceResource{}
	def := r.Definition()
	assert.Equal(t, "hatidata://tool-reference", def.URI)

	result, err := r.Read()
	require.NoError(t, err)
	text := result.Contents[0].Text
	for _, toolName := range []string{
		"list_schemas", "read_query", "store_memory", "log_reasoning_step",
		"register_trigger", "branch_create",
	} {
		assert.Contains(t, text, toolName)
	}
}
