package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"
)

// Commands the agent may answer with
const (
	CommandSelectRegion = "SelectRegion"
	CommandGeneralQuery = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName string `json:"command_name" jsonschema_description:"The command to execute, either SelectRegion or GeneralQuery"`
	RegionKey   string `json:"region_key" jsonschema_description:"The region key from the supported list, if applicable"`
	UserMessage string `json:"user_message" jsonschema_description:"A message to show back to the user in their original language"`
}

// IntentService interprets free-text viewer requests.
type IntentService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, regions []entities.RegionProfile) (*AgentResponse, error)
}

// intentService asks a chat model for a structured AgentResponse
type intentService struct {
	client openai.Client
	model  openai.ChatModel
	format openai.ChatCompletionNewParamsResponseFormatUnion
}

// agentSchema reflects AgentResponse into a closed schema with every field required
func agentSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&AgentResponse{})
}

// agentResponseFormat makes the model answer with JSON matching agentSchema
func agentResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        "radar_intent",
				Description: openai.String("Command, region key and a reply for the viewer"),
				Schema:      agentSchema(),
				Strict:      openai.Bool(true),
			},
		},
	}
}

// NewOpenAIService creates an IntentService authenticated with apiKey.
func NewOpenAIService(apiKey string) (IntentService, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	return &intentService{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4o,
		format: agentResponseFormat(),
	}, nil
}

// SystemPrompt describes the agent's task and the supported regions.
func SystemPrompt(regions []entities.RegionProfile) string {
	var list strings.Builder
	for _, r := range regions {
		fmt.Fprintf(&list, "- %s (%s)\n", r.Key, r.Name)
	}

	return fmt.Sprintf(`You operate a Korean weather radar loop viewer.

Your mission is to map user requests onto one of the supported radar regions.

Requirements:
- You understand Korean and English.
- You reply in the same language the user used, in one short sentence.

Supported regions (key and Korean name):
%s
Behavior:
1. If the user wants to see radar for a place covered by one of the regions:
   - command_name = "SelectRegion"
   - region_key = the matching key exactly as listed; a city maps to the province that contains it, places outside Korea map to "eastAsia".
   - user_message: a one-line confirmation.
2. Otherwise (greetings, forecasts, anything else):
   - command_name = "GeneralQuery"
   - region_key = ""
   - user_message: a short reply explaining that you only switch radar regions.

Output **strictly** in JSON.`, list.String())
}

// InterpretUserQuery maps one free-text message onto a command.
func (s *intentService) InterpretUserQuery(ctx context.Context, userMessage string, regions []entities.RegionProfile) (*AgentResponse, error) {
	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:          s.model,
		ResponseFormat: s.format,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(regions)),
			openai.UserMessage(userMessage),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}
	return ParseAgentResponse(chat.Choices[0].Message.Content)
}

// ParseAgentResponse decodes the agent's JSON answer and rejects unknown commands.
func ParseAgentResponse(content string) (*AgentResponse, error) {
	var agentResp AgentResponse
	if err := json.Unmarshal([]byte(content), &agentResp); err != nil {
		log.Printf("Failed to unmarshal OpenAI response: %s\nRaw response: %s", err, content)
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}
	agentResp.RegionKey = strings.TrimSpace(agentResp.RegionKey)

	switch agentResp.CommandName {
	case CommandSelectRegion, CommandGeneralQuery:
		return &agentResp, nil
	default:
		return nil, fmt.Errorf("agent answered with unknown command %q", agentResp.CommandName)
	}
}
