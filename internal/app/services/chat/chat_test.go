package chat

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	domain "github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/app/services/assets"
	"github.com/R3E-Network/fortivo/internal/app/services/beneficiaries"
	"github.com/R3E-Network/fortivo/internal/app/services/profiles"
	"github.com/R3E-Network/fortivo/internal/app/storage/memory"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/internal/llm"
)

const userID = "user-1"

type fixture struct {
	store         *memory.Store
	assets        *assets.Service
	beneficiaries *beneficiaries.Service
	tools         *Tools
	commands      *Commands
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	name := "Ada Lovelace"
	_, err := store.CreateProfile(context.Background(), account.Profile{UserID: userID, FullName: &name})
	require.NoError(t, err)

	a := assets.New(store, store, store, nil, nil, nil)
	b := beneficiaries.New(store, store, nil, nil)
	p := profiles.New(store, nil)
	return &fixture{
		store:         store,
		assets:        a,
		beneficiaries: b,
		tools:         NewTools(a, b, p),
		commands:      NewCommands(a, b),
	}
}

func (f *fixture) addAsset(t *testing.T, raw string) asset.Asset {
	t.Helper()
	var in assets.Input
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	a, err := f.assets.Create(context.Background(), userID, in)
	require.NoError(t, err)
	return a
}

func (f *fixture) addBeneficiary(t *testing.T, name string) asset.Beneficiary {
	t.Helper()
	var in beneficiaries.Input
	require.NoError(t, json.Unmarshal([]byte(`{"full_name":"`+name+`"}`), &in))
	b, err := f.beneficiaries.Create(context.Background(), userID, in)
	require.NoError(t, err)
	return b
}

// scripted replays canned responses and records requests.
type scripted struct {
	responses []llm.Response
	err       error
	requests  []llm.Request
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return llm.Response{}, s.err
	}
	if len(s.responses) == 0 {
		return llm.Response{Content: "done", StopReason: llm.StopEndTurn}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func toolUse(name, args string) llm.Response {
	return llm.Response{
		StopReason: llm.StopToolUse,
		ToolCalls:  []domain.ToolCall{{ID: "call_" + name, Name: name, Arguments: json.RawMessage(args)}},
	}
}

// Parser ----------------------------------------------------------------------

func TestParseAssetDescription(t *testing.T) {
	p := ParseAssetDescription("gold watch valued at 500 is physical in the safe, for anna")
	assert.Equal(t, "gold watch", p.Name)
	assert.Equal(t, asset.TypePhysical, p.Type)
	require.NotNil(t, p.EstimatedValue)
	assert.Equal(t, 500.0, *p.EstimatedValue)
	require.NotNil(t, p.Location)
	assert.Equal(t, "the safe", *p.Location)
	require.NotNil(t, p.BeneficiaryName)
	assert.Equal(t, "anna", *p.BeneficiaryName)

	p = ParseAssetDescription("family house is financial")
	assert.Equal(t, "family house", p.Name)
	assert.Equal(t, asset.TypeFinancial, p.Type)
	assert.Nil(t, p.EstimatedValue)

	p = ParseAssetDescription("old bicycle")
	assert.Equal(t, "old bicycle", p.Name)
	assert.Equal(t, asset.TypeOther, p.Type)
	assert.Nil(t, p.Location)
}

// Tools -----------------------------------------------------------------------

func TestDefinitionsCoverEveryTool(t *testing.T) {
	f := newFixture(t)
	defs := f.tools.Definitions()
	require.Len(t, defs, 11)
	for _, d := range defs {
		var schema map[string]interface{}
		require.NoError(t, json.Unmarshal(d.Parameters, &schema), d.Name)
		assert.Equal(t, "object", schema["type"], d.Name)
		assert.Contains(t, ToolsContext(), d.Name)
	}
}

func TestListAssetsTool(t *testing.T) {
	f := newFixture(t)
	ben := f.addBeneficiary(t, "Anna Smith")
	f.addAsset(t, `{"name":"House","type":"physical","estimated_value":1250000,"beneficiary_id":"`+ben.ID+`"}`)
	f.addAsset(t, `{"name":"Blog","type":"digital"}`)

	res := f.tools.Execute(context.Background(), userID, "list_assets", nil)
	require.True(t, res.Success)
	assert.Equal(t, "Found 2 assets in your portfolio", res.Message)

	data := res.Data.(map[string]interface{})
	assert.Equal(t, 2, data["total"])
	summaries := data["assets"].([]assetSummary)
	byName := map[string]assetSummary{}
	for _, s := range summaries {
		byName[s.Name] = s
	}
	assert.Equal(t, "$1,250,000", byName["House"].Value)
	assert.Equal(t, "Anna Smith", byName["House"].Beneficiary)
	assert.Equal(t, "Not specified", byName["Blog"].Value)
	assert.Equal(t, "No beneficiary assigned", byName["Blog"].Beneficiary)
}

func TestCreateAssetTool(t *testing.T) {
	f := newFixture(t)
	res := f.tools.Execute(context.Background(), userID, "create_asset", json.RawMessage(`{"name":"Car","type":"physical","estimated_value":20000}`))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, `Successfully created asset "Car" with type "physical"`, res.Message)

	res = f.tools.Execute(context.Background(), userID, "create_asset", json.RawMessage(`{"name":"Car"}`))
	assert.False(t, res.Success)
	assert.Equal(t, `Failed to create asset "Car"`, res.Message)
}

func TestUpdateAndDeleteAssetByName(t *testing.T) {
	f := newFixture(t)
	f.addAsset(t, `{"name":"Lake House","type":"physical"}`)
	f.addAsset(t, `{"name":"Savings","type":"financial"}`)
	ctx := context.Background()

	res := f.tools.Execute(ctx, userID, "update_asset", json.RawMessage(`{"asset_name":"lake","updates":{"estimated_value":300000}}`))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, `Successfully updated asset "Lake House"`, res.Message)

	items, err := f.assets.List(ctx, userID)
	require.NoError(t, err)
	for _, a := range items {
		if a.Name == "Lake House" {
			require.NotNil(t, a.EstimatedValue)
			assert.Equal(t, 300000.0, *a.EstimatedValue)
		}
	}

	res = f.tools.Execute(ctx, userID, "delete_asset", json.RawMessage(`{"asset_name":"boat"}`))
	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Message, `Asset "boat" not found. Available assets: `))
	assert.Contains(t, res.Message, "Lake House")
	assert.Contains(t, res.Message, "Savings")

	res = f.tools.Execute(ctx, userID, "delete_asset", json.RawMessage(`{"asset_name":"SAVINGS"}`))
	require.True(t, res.Success)
	assert.Equal(t, `Successfully deleted asset "Savings"`, res.Message)
}

func TestNamedToolsRequireName(t *testing.T) {
	f := newFixture(t)
	f.addAsset(t, `{"name":"House","type":"physical"}`)
	f.addAsset(t, `{"name":"Car","type":"physical"}`)
	f.addBeneficiary(t, "Tom")
	ctx := context.Background()

	cases := map[string]string{
		"update_asset":       "asset_name is required",
		"delete_asset":       "asset_name is required",
		"update_beneficiary": "beneficiary_name is required",
		"delete_beneficiary": "beneficiary_name is required",
	}
	for name, msg := range cases {
		for _, args := range []string{`{}`, `{"asset_name":"  ","beneficiary_name":""}`} {
			res := f.tools.Execute(ctx, userID, name, json.RawMessage(args))
			assert.False(t, res.Success, name)
			assert.Equal(t, msg, res.Message, name)
			assert.NotEmpty(t, res.Error, name)
		}
		res := f.tools.Execute(ctx, userID, name, nil)
		assert.False(t, res.Success, name)
	}

	items, err := f.assets.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	bens, err := f.beneficiaries.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, bens, 1)
}

func TestBeneficiaryTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.tools.Execute(ctx, userID, "create_beneficiary", json.RawMessage(`{"full_name":"Tom Jones","relationship":"son"}`))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, `Successfully created beneficiary "Tom Jones"`, res.Message)

	res = f.tools.Execute(ctx, userID, "list_beneficiaries", json.RawMessage(`{}`))
	require.True(t, res.Success)
	assert.Equal(t, "Found 1 beneficiaries", res.Message)
	list := res.Data.(map[string]interface{})["beneficiaries"].([]beneficiarySummary)
	require.Len(t, list, 1)
	assert.Equal(t, "son", list[0].Relationship)
	assert.Equal(t, "Not provided", list[0].Email)

	res = f.tools.Execute(ctx, userID, "update_beneficiary", json.RawMessage(`{"beneficiary_name":"tom","updates":{"contact_email":"tom@example.com"}}`))
	require.True(t, res.Success, res.Error)

	res = f.tools.Execute(ctx, userID, "delete_beneficiary", json.RawMessage(`{"beneficiary_name":"tim"}`))
	assert.Equal(t, `Beneficiary "tim" not found. Available beneficiaries: Tom Jones`, res.Message)

	res = f.tools.Execute(ctx, userID, "delete_beneficiary", json.RawMessage(`{"beneficiary_name":"tom"}`))
	assert.True(t, res.Success)
}

func TestPortfolioSummaryAndAssignment(t *testing.T) {
	f := newFixture(t)
	ben := f.addBeneficiary(t, "Anna")
	f.addAsset(t, `{"name":"House","type":"physical","estimated_value":1000,"beneficiary_id":"`+ben.ID+`"}`)
	f.addAsset(t, `{"name":"Stocks","type":"financial","estimated_value":500.5}`)
	f.addAsset(t, `{"name":"Car","type":"physical"}`)
	ctx := context.Background()

	res := f.tools.Execute(ctx, userID, "portfolio_summary", nil)
	require.True(t, res.Success)
	data := res.Data.(map[string]interface{})
	assert.Equal(t, 3, data["totalAssets"])
	assert.Equal(t, 1500.5, data["totalValue"])
	assert.Equal(t, "$1,500.5", data["formattedValue"])
	assert.Equal(t, map[string]int{"physical": 2, "financial": 1}, data["assetsByType"])
	assert.Equal(t, 1, data["assignedAssets"])
	assert.Equal(t, 2, data["unassignedAssets"])
	assert.Equal(t, "33%", data["assignmentRate"])

	res = f.tools.Execute(ctx, userID, "asset_assignment_status", nil)
	assert.Equal(t, "Asset assignment status: 1 assigned, 2 unassigned", res.Message)
}

func TestPortfolioSummaryEmpty(t *testing.T) {
	f := newFixture(t)
	res := f.tools.Execute(context.Background(), userID, "portfolio_summary", nil)
	require.True(t, res.Success)
	assert.Equal(t, "0%", res.Data.(map[string]interface{})["assignmentRate"])
}

func TestGetProfileTool(t *testing.T) {
	f := newFixture(t)
	res := f.tools.Execute(context.Background(), userID, "get_profile", nil)
	require.True(t, res.Success, res.Error)
	data := res.Data.(map[string]interface{})
	assert.Equal(t, "Ada Lovelace", data["name"])
	assert.Equal(t, "free", data["subscriptionTier"])

	res = f.tools.Execute(context.Background(), "nobody", "get_profile", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "Failed to retrieve profile information", res.Message)
}

func TestExecuteUnknownTool(t *testing.T) {
	f := newFixture(t)
	res := f.tools.Execute(context.Background(), userID, "launch_rocket", nil)
	assert.False(t, res.Success)
	assert.Equal(t, `Tool "launch_rocket" not found`, res.Message)
	assert.Equal(t, "Tool not found", res.Error)
}

func TestExecuteBadArguments(t *testing.T) {
	f := newFixture(t)
	res := f.tools.Execute(context.Background(), userID, "create_asset", json.RawMessage(`[1,2]`))
	assert.False(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Message, "Tool execution failed: "))
}

func TestDollars(t *testing.T) {
	assert.Equal(t, "$0", dollars(0))
	assert.Equal(t, "$999", dollars(999))
	assert.Equal(t, "$1,234,567.891", dollars(1234567.8912))
	assert.Equal(t, "$-1,000", dollars(-1000))
}

// Commands --------------------------------------------------------------------

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("Add asset car"))
	assert.True(t, IsCommand("remove beneficiary tom"))
	assert.False(t, IsCommand("additionally, what is my net worth?"))
	assert.False(t, IsCommand("hello"))
}

func TestAddAssetCommand(t *testing.T) {
	f := newFixture(t)
	ben := f.addBeneficiary(t, "Anna")
	ctx := context.Background()

	res := f.commands.Execute(ctx, userID, "add asset Gold Watch valued at 500 is physical in the safe, for anna")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Asset \"gold watch\" has been added successfully with the following details:\n- Type: physical\n- Value: $500\n- Location: the safe\n- Beneficiary: anna", res.Message)

	items, err := f.assets.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].BeneficiaryID)
	assert.Equal(t, ben.ID, *items[0].BeneficiaryID)
	require.NotNil(t, items[0].Description)
	assert.Equal(t, "gold watch valued at 500 is physical in the safe, for anna", *items[0].Description)
}

func TestRemoveCommands(t *testing.T) {
	f := newFixture(t)
	f.addAsset(t, `{"name":"Car","type":"physical"}`)
	f.addBeneficiary(t, "Tom")
	ctx := context.Background()

	assert.Equal(t, CommandResult{Message: `Asset "boat" not found`}, f.commands.Execute(ctx, userID, "remove asset boat"))
	assert.Equal(t, CommandResult{Success: true, Message: `Asset "car" has been removed successfully`}, f.commands.Execute(ctx, userID, "remove asset car"))
	assert.Equal(t, CommandResult{Success: true, Message: `Beneficiary "tom" has been removed successfully`}, f.commands.Execute(ctx, userID, "remove beneficiary Tom"))
	assert.Equal(t, CommandResult{Success: true, Message: `Beneficiary "lisa" has been added successfully`}, f.commands.Execute(ctx, userID, "add beneficiary Lisa"))
}

func TestCommandValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Equal(t, "Please provide an asset description", f.commands.Execute(ctx, userID, "add asset").Message)
	assert.Equal(t, "Please provide an asset name", f.commands.Execute(ctx, userID, "remove asset ").Message)
	assert.Equal(t, "Please provide a beneficiary name", f.commands.Execute(ctx, userID, "add beneficiary").Message)
	assert.Equal(t, commandHelp, f.commands.Execute(ctx, userID, "add pet rex").Message)
}

func TestCommandWithLeadingWhitespace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, IsCommand("  add beneficiary Lisa"))
	res := f.commands.Execute(ctx, userID, "  add beneficiary Lisa  ")
	assert.Equal(t, CommandResult{Success: true, Message: `Beneficiary "lisa" has been added successfully`}, res)
}

// Service ---------------------------------------------------------------------

func newChat(f *fixture, provider llm.Provider, opts Options) *Service {
	return New(provider, f.tools, f.commands, f.store, opts, nil)
}

func TestCompleteRunsToolsServerSide(t *testing.T) {
	f := newFixture(t)
	provider := &scripted{responses: []llm.Response{
		toolUse("create_asset", `{"name":"Boat","type":"physical"}`),
		{Content: "I added your boat.", StopReason: llm.StopEndTurn},
	}}
	svc := newChat(f, provider, Options{})

	out, err := svc.Complete(context.Background(), userID, []domain.Message{{Role: domain.RoleUser, Content: "Please add my boat"}})
	require.NoError(t, err)
	assert.Equal(t, "I added your boat.", out.Content)
	require.Len(t, out.ToolResults, 1)
	assert.True(t, out.ToolResults[0].Result.Success)
	require.Len(t, provider.requests, 2)

	first := provider.requests[0]
	assert.Equal(t, domain.RoleSystem, first.Messages[0].Role)
	assert.Contains(t, first.Messages[0].Content, ToolsContext())
	assert.Len(t, first.Tools, 11)

	second := provider.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, domain.RoleAssistant, second[2].Role)
	assert.Equal(t, domain.RoleTool, second[3].Role)
	assert.Equal(t, "call_create_asset", second[3].ToolCallID)

	items, err := f.assets.List(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCompleteStopsAfterMaxRounds(t *testing.T) {
	f := newFixture(t)
	var responses []llm.Response
	for i := 0; i < 10; i++ {
		responses = append(responses, toolUse("list_assets", `{}`))
	}
	provider := &scripted{responses: responses}
	svc := newChat(f, provider, Options{MaxToolRounds: 2})

	_, err := svc.Complete(context.Background(), userID, []domain.Message{{Role: domain.RoleUser, Content: "loop"}})
	require.NoError(t, err)
	require.Len(t, provider.requests, 3)
	assert.False(t, provider.requests[1].NoToolUse)
	last := provider.requests[2]
	assert.True(t, last.NoToolUse)
	assert.Len(t, last.Tools, 11)
	assert.Equal(t, domain.RoleTool, last.Messages[len(last.Messages)-1].Role)
}

func TestCompleteProviderFailures(t *testing.T) {
	f := newFixture(t)
	msgs := []domain.Message{{Role: domain.RoleUser, Content: "hi"}}

	svc := newChat(f, &scripted{err: stderrors.New("throttled")}, Options{})
	out, err := svc.Complete(context.Background(), userID, msgs)
	require.NoError(t, err)
	assert.Equal(t, Apology, out.Content)
	assert.Equal(t, "throttled", out.Error)

	svc = newChat(f, nil, Options{})
	_, err = svc.Complete(context.Background(), userID, msgs)
	assert.True(t, errors.HasCode(err, "llm_unavailable"))
	assert.Equal(t, 503, errors.StatusOf(err))
}

func TestCompleteRoutesCommands(t *testing.T) {
	f := newFixture(t)
	provider := &scripted{}
	svc := newChat(f, provider, Options{})

	out, err := svc.Complete(context.Background(), userID, []domain.Message{{Role: domain.RoleUser, Content: "add beneficiary Mia"}})
	require.NoError(t, err)
	assert.Equal(t, `Beneficiary "mia" has been added successfully`, out.Content)
	assert.Empty(t, provider.requests)
}

func TestConversationLifecycle(t *testing.T) {
	f := newFixture(t)
	provider := &scripted{responses: []llm.Response{{Content: "Hello there"}}}
	svc := newChat(f, provider, Options{})
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, userID, nil)
	require.NoError(t, err)
	require.NotNil(t, conv.Title)
	assert.Equal(t, domain.DefaultTitle, *conv.Title)

	long := strings.Repeat("x", 60)
	reply, err := svc.SendMessage(ctx, userID, conv.ID, long)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 50)+"...", *reply.Conversation.Title)
	assert.Equal(t, "Hello there", reply.AssistantMessage.Content)
	assert.Equal(t, domain.RoleUser, reply.UserMessage.Role)

	detail, err := svc.GetConversation(ctx, userID, conv.ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, domain.RoleUser, detail.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, detail.Messages[1].Role)

	title := "Estate questions"
	updated, err := svc.UpdateTitle(ctx, userID, conv.ID, &title)
	require.NoError(t, err)
	assert.Equal(t, title, *updated.Title)

	_, err = svc.GetConversation(ctx, "intruder", conv.ID)
	assert.True(t, errors.HasCode(err, "conversation_not_found"))

	require.NoError(t, svc.DeleteConversation(ctx, userID, conv.ID))
	_, err = svc.GetConversation(ctx, userID, conv.ID)
	assert.True(t, errors.HasCode(err, "conversation_not_found"))
}

func TestSendMessageKeepsCustomTitle(t *testing.T) {
	f := newFixture(t)
	svc := newChat(f, &scripted{}, Options{})
	ctx := context.Background()

	title := "Taxes"
	conv, err := svc.CreateConversation(ctx, userID, &title)
	require.NoError(t, err)
	reply, err := svc.SendMessage(ctx, userID, conv.ID, "short")
	require.NoError(t, err)
	assert.Equal(t, "Taxes", *reply.Conversation.Title)
}

func TestSendMessageStoresToolCalls(t *testing.T) {
	f := newFixture(t)
	provider := &scripted{responses: []llm.Response{toolUse("list_assets", `{}`), {Content: "You have no assets."}}}
	svc := newChat(f, provider, Options{})
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, userID, nil)
	require.NoError(t, err)
	reply, err := svc.SendMessage(ctx, userID, conv.ID, "what do I own?")
	require.NoError(t, err)
	require.NotEmpty(t, reply.AssistantMessage.ToolCalls)

	var calls []domain.ToolCall
	require.NoError(t, json.Unmarshal(reply.AssistantMessage.ToolCalls, &calls))
	assert.Equal(t, "list_assets", calls[0].Name)
}

type agentStub struct {
	session, input string
}

func (a *agentStub) Invoke(_ context.Context, sessionID, input string) (string, error) {
	a.session, a.input = sessionID, input
	return "agent says hi", nil
}

func TestSendMessageUsesAgent(t *testing.T) {
	f := newFixture(t)
	agent := &agentStub{}
	provider := &scripted{}
	svc := newChat(f, provider, Options{Agent: agent})
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, userID, nil)
	require.NoError(t, err)
	reply, err := svc.SendMessage(ctx, userID, conv.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "agent says hi", reply.AssistantMessage.Content)
	assert.Equal(t, conv.ID, agent.session)
	assert.Empty(t, provider.requests)
}

func TestHistorySkipsToolTraffic(t *testing.T) {
	stored := []domain.StoredMessage{
		{Role: domain.RoleUser, Content: "a"},
		{Role: domain.RoleAssistant, Content: ""},
		{Role: domain.RoleTool, Content: "{}"},
		{Role: domain.RoleAssistant, Content: "b", ToolCalls: json.RawMessage(`[{"id":"x"}]`)},
	}
	got := History(stored)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Content)
	assert.Empty(t, got[1].ToolCalls)
}
