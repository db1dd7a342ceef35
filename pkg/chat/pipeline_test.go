package chat

import (
	"context"
	"testing"

	"github.com/go-go-golems/xllama/pkg/conversation"
	"github.com/go-go-golems/xllama/pkg/inference"
	"github.com/go-go-golems/xllama/pkg/inference/fixtures"
	"github.com/go-go-golems/xllama/pkg/prompt"
	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModelID = "a16z-infra/llama7b-v2-chat:4f0a4744c7295c024a1de15e1a63c880d3da035fa1f49bfd344fe076074c8eea"

func TestPipelineRespondSendsCompiledPrompt(t *testing.T) {
	provider := fixtures.NewScriptedProvider("Hello", " there.")
	pipeline, err := NewPipeline(provider)
	require.NoError(t, err)

	store := conversation.NewStore()
	got, err := pipeline.Respond(context.Background(), store.All(), "Hi",
		settings.NewGenerationParameters(), testModelID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", got)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t,
		prompt.DefaultPreamble+"Assistant: How may I assist you today?\n\nUser: Hi\n\nAssistant:",
		calls[0].Input.Prompt)
	assert.Equal(t, testModelID, calls[0].ModelID)
}

func TestPipelineRespondFailureLeavesStoreUntouched(t *testing.T) {
	provider := fixtures.NewScriptedProvider("The", " sky").FailingAfter(1, errors.New("stream reset"))
	pipeline, err := NewPipeline(provider)
	require.NoError(t, err)

	store := conversation.NewStore()
	before := store.All()

	got, err := pipeline.Respond(context.Background(), store.All(), "Hi",
		settings.NewGenerationParameters(), testModelID, nil)
	assert.Equal(t, "", got)
	var pe *inference.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, before, store.All())
}

func TestPipelineUsesCustomCompiler(t *testing.T) {
	compiler, err := prompt.NewCompiler(prompt.WithPreamble("SYS\n\n"))
	require.NoError(t, err)
	provider := fixtures.NewScriptedProvider("ok")
	pipeline, err := NewPipeline(provider, WithCompiler(compiler))
	require.NoError(t, err)

	_, err = pipeline.Respond(context.Background(), nil, "Hi", nil, testModelID, nil)
	require.NoError(t, err)
	assert.Equal(t, "SYS\n\nUser: Hi\n\nAssistant:", provider.Calls()[0].Input.Prompt)
}
