package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/tidwall/gjson"
)

// InvokeAgentAPI is the Bedrock agent runtime call used by Agent.
type InvokeAgentAPI interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

// Agent talks to a managed Bedrock agent, which keeps its own session state.
type Agent struct {
	client  InvokeAgentAPI
	agentID string
	aliasID string
}

// NewAgent wraps an agent runtime client.
func NewAgent(client InvokeAgentAPI, agentID, aliasID string) *Agent {
	return &Agent{client: client, agentID: agentID, aliasID: aliasID}
}

// NewAgentFromConfig builds an Agent from an AWS config.
func NewAgentFromConfig(cfg aws.Config, agentID, aliasID string) *Agent {
	return NewAgent(bedrockagentruntime.NewFromConfig(cfg), agentID, aliasID)
}

// Invoke sends input within sessionID and returns the concatenated answer.
func (a *Agent) Invoke(ctx context.Context, sessionID, input string) (string, error) {
	out, err := a.client.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(a.agentID),
		AgentAliasId: aws.String(a.aliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(input),
	})
	if err != nil {
		return "", fmt.Errorf("bedrock agent: %w", err)
	}

	stream := out.GetStream()
	defer stream.Close()
	content := collectChunks(stream.Events())
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("bedrock agent stream: %w", err)
	}
	if content == "" {
		content = noResponse
	}
	return content, nil
}

// collectChunks joins the chunk payloads of an agent stream. Chunks carrying
// a JSON object contribute their "content" field; anything else is text.
func collectChunks(events <-chan types.ResponseStream) string {
	var b strings.Builder
	for ev := range events {
		chunk, ok := ev.(*types.ResponseStreamMemberChunk)
		if !ok || len(chunk.Value.Bytes) == 0 {
			continue
		}
		if gjson.ValidBytes(chunk.Value.Bytes) {
			if c := gjson.GetBytes(chunk.Value.Bytes, "content"); c.Exists() {
				b.WriteString(c.String())
				continue
			}
		}
		b.WriteString(string(chunk.Value.Bytes))
	}
	return b.String()
}
