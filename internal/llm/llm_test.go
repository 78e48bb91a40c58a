package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/generative-ai-go/genai"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	reply string
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: f.reply}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(5), TotalTokens: aws.Int32(17)},
	}, nil
}

func TestBedrockClientComplete(t *testing.T) {
	api := &fakeConverse{reply: "  {\"gender\":\"female\"}  "}
	c := NewBedrockClient(api, "anthropic.claude-3-haiku")

	resp, err := c.Complete(context.Background(), Request{
		System: []string{"extract fields"},
		Messages: []Message{
			{Role: RoleSystem, Content: "answer in JSON"},
			{Role: RoleUser, Content: "I'm a woman"},
			{Role: RoleAssistant, Content: ""},
		},
		MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"gender":"female"}`, resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, int32(17), resp.Usage.TotalTokens)

	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 2)
	assert.Len(t, api.input.Messages, 1, "empty turns dropped")
	require.NotNil(t, api.input.InferenceConfig)
	assert.Nil(t, api.input.InferenceConfig.Temperature)
	assert.Equal(t, int32(256), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
}

func TestBedrockClientErrors(t *testing.T) {
	_, err := NewBedrockClient(&fakeConverse{}, "").Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.Error(t, err)

	_, err = NewBedrockClient(&fakeConverse{}, "m").Complete(context.Background(), Request{Messages: []Message{{Role: "tool", Content: "x"}}})
	assert.Error(t, err)

	_, err = NewBedrockClient(&fakeConverse{}, "m").Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoMessages)

	_, err = NewBedrockClient(&fakeConverse{reply: "   "}, "m").Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.Error(t, err)
}

type stubClient struct {
	text  string
	err   error
	calls int
}

func (s *stubClient) Complete(context.Context, Request) (Response, error) {
	s.calls++
	if s.err != nil {
		return Response{}, s.err
	}
	return Response{Text: s.text}, nil
}

func TestFallback(t *testing.T) {
	primary := &stubClient{err: errors.New("quota")}
	secondary := &stubClient{text: "from fallback"}

	resp, err := NewFallback(primary, secondary, zerolog.Nop()).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Text)

	healthy := &stubClient{text: "primary"}
	unused := &stubClient{text: "unused"}
	resp, err = NewFallback(healthy, unused, zerolog.Nop()).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Zero(t, unused.calls)

	_, err = NewFallback(primary, nil, zerolog.Nop()).Complete(context.Background(), Request{})
	assert.EqualError(t, err, "quota")
}

func TestConfigureModelKeepsDefaultsForZeroValues(t *testing.T) {
	model := &genai.GenerativeModel{}
	configureModel(model, Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	assert.Nil(t, model.Temperature, "unset temperature must not be forced to 0")
	assert.Nil(t, model.TopP)
	assert.Nil(t, model.MaxOutputTokens)
	assert.Empty(t, model.ResponseMIMEType)
	assert.Nil(t, model.SystemInstruction)
}

func TestConfigureModelAppliesSettings(t *testing.T) {
	model := &genai.GenerativeModel{}
	configureModel(model, Request{
		System:      []string{"be brief", " "},
		MaxTokens:   512,
		Temperature: 0.2,
		TopP:        0.9,
		JSON:        true,
	})

	require.NotNil(t, model.Temperature)
	assert.InDelta(t, 0.2, *model.Temperature, 1e-6)
	require.NotNil(t, model.TopP)
	assert.InDelta(t, 0.9, *model.TopP, 1e-6)
	require.NotNil(t, model.MaxOutputTokens)
	assert.Equal(t, int32(512), *model.MaxOutputTokens)
	assert.Equal(t, "application/json", model.ResponseMIMEType)
	require.NotNil(t, model.SystemInstruction)
	require.Len(t, model.SystemInstruction.Parts, 1)
	assert.Equal(t, genai.Text("be brief"), model.SystemInstruction.Parts[0])
}

func TestGeminiClientRequiresKeyAndMessages(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), " ", "")
	assert.Error(t, err)

	_, err = (&GeminiClient{}).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoMessages)
}
