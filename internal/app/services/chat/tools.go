package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/R3E-Network/fortivo/internal/app/domain/account"
	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
	domain "github.com/R3E-Network/fortivo/internal/app/domain/chat"
	"github.com/R3E-Network/fortivo/internal/app/domain/currency"
	"github.com/R3E-Network/fortivo/internal/app/metrics"
	"github.com/R3E-Network/fortivo/internal/app/services/assets"
	"github.com/R3E-Network/fortivo/internal/app/services/beneficiaries"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/internal/llm"
)

// AssetManager is the asset surface used by tools and commands.
type AssetManager interface {
	List(ctx context.Context, userID string) ([]asset.Asset, error)
	Create(ctx context.Context, userID string, in assets.Input) (asset.Asset, error)
	Update(ctx context.Context, userID, id string, in assets.Input) (asset.Asset, error)
	Delete(ctx context.Context, userID, id string) error
}

// BeneficiaryManager is the beneficiary surface used by tools and commands.
type BeneficiaryManager interface {
	List(ctx context.Context, userID string) ([]asset.Beneficiary, error)
	Create(ctx context.Context, userID string, in beneficiaries.Input) (asset.Beneficiary, error)
	Update(ctx context.Context, userID, id string, in beneficiaries.Input) (asset.Beneficiary, error)
	Delete(ctx context.Context, userID, id string) error
}

// ProfileReader reads a user's profile.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (account.Profile, error)
}

type executor func(ctx context.Context, userID string, args json.RawMessage) (domain.ToolResult, error)

// Tool is one entry of the tool table.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	execute     executor
}

// Tools is the static table of CRUD operations the assistant may call on
// behalf of a user.
type Tools struct {
	assets        AssetManager
	beneficiaries BeneficiaryManager
	profiles      ProfileReader
	list          []Tool
	byName        map[string]Tool
}

// NewTools binds the tool table to the given services.
func NewTools(a AssetManager, b BeneficiaryManager, p ProfileReader) *Tools {
	t := &Tools{assets: a, beneficiaries: b, profiles: p}
	t.list = []Tool{
		{Name: "list_assets", Description: "List all assets for the current user", Parameters: emptySchema, execute: t.listAssets},
		{Name: "create_asset", Description: "Create a new asset in the portfolio", Parameters: createAssetSchema, execute: t.createAsset},
		{Name: "update_asset", Description: "Update an existing asset", Parameters: updateAssetSchema, execute: t.updateAsset},
		{Name: "delete_asset", Description: "Delete an asset from the portfolio", Parameters: deleteAssetSchema, execute: t.deleteAsset},
		{Name: "list_beneficiaries", Description: "List all beneficiaries for the current user", Parameters: emptySchema, execute: t.listBeneficiaries},
		{Name: "create_beneficiary", Description: "Create a new beneficiary", Parameters: createBeneficiarySchema, execute: t.createBeneficiary},
		{Name: "update_beneficiary", Description: "Update an existing beneficiary", Parameters: updateBeneficiarySchema, execute: t.updateBeneficiary},
		{Name: "delete_beneficiary", Description: "Delete a beneficiary", Parameters: deleteBeneficiarySchema, execute: t.deleteBeneficiary},
		{Name: "portfolio_summary", Description: "Get a comprehensive summary of the user's portfolio", Parameters: emptySchema, execute: t.portfolioSummary},
		{Name: "asset_assignment_status", Description: "Check which assets are assigned to beneficiaries and which are not", Parameters: emptySchema, execute: t.assignmentStatus},
		{Name: "get_profile", Description: "Get user profile information", Parameters: emptySchema, execute: t.getProfile},
	}
	t.byName = make(map[string]Tool, len(t.list))
	for _, tool := range t.list {
		t.byName[tool.Name] = tool
	}
	return t
}

// List returns the tool table in declaration order.
func (t *Tools) List() []Tool {
	out := make([]Tool, len(t.list))
	copy(out, t.list)
	return out
}

// Definitions returns the tool table in provider form.
func (t *Tools) Definitions() []llm.Tool {
	out := make([]llm.Tool, 0, len(t.list))
	for _, tool := range t.list {
		out = append(out, llm.Tool{Name: tool.Name, Description: tool.Description, Parameters: tool.Parameters})
	}
	return out
}

// Execute runs the named tool for userID. It never returns an error: every
// failure is reported in the result.
func (t *Tools) Execute(ctx context.Context, userID, name string, args json.RawMessage) (result domain.ToolResult) {
	tool, ok := t.byName[name]
	if !ok {
		return domain.ToolResult{Message: fmt.Sprintf("Tool %q not found", name), Error: "Tool not found"}
	}
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			result = domain.ToolResult{Message: "Tool execution failed: " + msg, Error: msg}
		}
		metrics.RecordToolExecution(name, result.Success)
	}()

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	res, err := tool.execute(ctx, userID, args)
	if err != nil {
		return domain.ToolResult{Message: "Tool execution failed: " + err.Error(), Error: err.Error()}
	}
	return res
}

func failed(message string, err error) (domain.ToolResult, error) {
	return domain.ToolResult{Message: message, Error: errorText(err)}, nil
}

// errorText renders err for tool output, preferring the API message.
func errorText(err error) string {
	if se := errors.GetServiceError(err); se != nil {
		if se.Message != "" {
			return se.Message
		}
		return string(se.Code)
	}
	return err.Error()
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// dollars renders v the way an en-US locale prints a number, prefixed with $.
func dollars(v float64) string {
	whole, frac, _ := strings.Cut(strconv.FormatFloat(math.Abs(v), 'f', 3, 64), ".")
	n, _ := strconv.ParseInt(whole, 10, 64)
	out := currency.Group(n)
	if frac = strings.TrimRight(frac, "0"); frac != "" {
		out += "." + frac
	}
	if v < 0 && out != "0" {
		out = "-" + out
	}
	return "$" + out
}

func valueText(v *float64) string {
	if v == nil || *v == 0 {
		return "Not specified"
	}
	return dollars(*v)
}

func orDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func missingName(field string) domain.ToolResult {
	return domain.ToolResult{Message: field + " is required", Error: "missing " + field}
}

func findAsset(items []asset.Asset, query string) (asset.Asset, bool) {
	q := strings.ToLower(query)
	for _, a := range items {
		if strings.Contains(strings.ToLower(a.Name), q) {
			return a, true
		}
	}
	return asset.Asset{}, false
}

func findBeneficiary(items []asset.Beneficiary, query string) (asset.Beneficiary, bool) {
	q := strings.ToLower(query)
	for _, b := range items {
		if strings.Contains(strings.ToLower(b.FullName), q) {
			return b, true
		}
	}
	return asset.Beneficiary{}, false
}

func assetNames(items []asset.Asset) string {
	names := make([]string, len(items))
	for i, a := range items {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

func beneficiaryNames(items []asset.Beneficiary) string {
	names := make([]string, len(items))
	for i, b := range items {
		names[i] = b.FullName
	}
	return strings.Join(names, ", ")
}

// Asset tools.

type assetSummary struct {
	Name        string     `json:"name"`
	Type        asset.Type `json:"type"`
	Value       string     `json:"value"`
	Beneficiary string     `json:"beneficiary"`
}

func (t *Tools) listAssets(ctx context.Context, userID string, _ json.RawMessage) (domain.ToolResult, error) {
	items, err := t.assets.List(ctx, userID)
	if err != nil {
		return failed("Failed to retrieve assets", err)
	}
	summary := make([]assetSummary, 0, len(items))
	for _, a := range items {
		ben := "No beneficiary assigned"
		if a.Beneficiary != nil && a.Beneficiary.FullName != "" {
			ben = a.Beneficiary.FullName
		}
		summary = append(summary, assetSummary{Name: a.Name, Type: a.Type, Value: valueText(a.EstimatedValue), Beneficiary: ben})
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Found %d assets in your portfolio", len(items)),
		Data:    map[string]interface{}{"assets": summary, "total": len(items)},
	}, nil
}

func (t *Tools) createAsset(ctx context.Context, userID string, args json.RawMessage) (domain.ToolResult, error) {
	var in assets.Input
	if err := decodeArgs(args, &in); err != nil {
		return domain.ToolResult{}, err
	}
	name, typ := deref(in.Name.Value), deref(in.Type.Value)
	if name == "" || typ == "" {
		return domain.ToolResult{Message: fmt.Sprintf("Failed to create asset %q", name), Error: "name and type are required"}, nil
	}
	created, err := t.assets.Create(ctx, userID, in)
	if err != nil {
		return failed(fmt.Sprintf("Failed to create asset %q", name), err)
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Successfully created asset %q with type %q", name, typ),
		Data:    map[string]interface{}{"asset": created},
	}, nil
}

type namedUpdate struct {
	AssetName       string          `json:"asset_name"`
	BeneficiaryName string          `json:"beneficiary_name"`
	Updates         json.RawMessage `json:"updates"`
}

func (t *Tools) updateAsset(ctx context.Context, userID string, args json.RawMessage) (domain.ToolResult, error) {
	var req namedUpdate
	if err := decodeArgs(args, &req); err != nil {
		return domain.ToolResult{}, err
	}
	if strings.TrimSpace(req.AssetName) == "" {
		return missingName("asset_name"), nil
	}
	items, err := t.assets.List(ctx, userID)
	if err != nil {
		return failed(fmt.Sprintf("Failed to update asset %q", req.AssetName), err)
	}
	target, ok := findAsset(items, req.AssetName)
	if !ok {
		return domain.ToolResult{Message: fmt.Sprintf("Asset %q not found. Available assets: %s", req.AssetName, assetNames(items))}, nil
	}

	var in assets.Input
	if len(req.Updates) > 0 {
		if err := decodeArgs(req.Updates, &in); err != nil {
			return domain.ToolResult{}, err
		}
	}
	updated, err := t.assets.Update(ctx, userID, target.ID, in)
	if err != nil {
		return failed(fmt.Sprintf("Failed to update asset %q", req.AssetName), err)
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Successfully updated asset %q", target.Name),
		Data:    map[string]interface{}{"asset": updated},
	}, nil
}

func (t *Tools) deleteAsset(ctx context.Context, userID string, args json.RawMessage) (domain.ToolResult, error) {
	var req namedUpdate
	if err := decodeArgs(args, &req); err != nil {
		return domain.ToolResult{}, err
	}
	if strings.TrimSpace(req.AssetName) == "" {
		return missingName("asset_name"), nil
	}
	items, err := t.assets.List(ctx, userID)
	if err != nil {
		return failed(fmt.Sprintf("Failed to delete asset %q", req.AssetName), err)
	}
	target, ok := findAsset(items, req.AssetName)
	if !ok {
		return domain.ToolResult{Message: fmt.Sprintf("Asset %q not found. Available assets: %s", req.AssetName, assetNames(items))}, nil
	}
	if err := t.assets.Delete(ctx, userID, target.ID); err != nil {
		return failed(fmt.Sprintf("Failed to delete asset %q", req.AssetName), err)
	}
	return domain.ToolResult{Success: true, Message: fmt.Sprintf("Successfully deleted asset %q", target.Name)}, nil
}

// Beneficiary tools.

type beneficiarySummary struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
}

func (t *Tools) listBeneficiaries(ctx context.Context, userID string, _ json.RawMessage) (domain.ToolResult, error) {
	items, err := t.beneficiaries.List(ctx, userID)
	if err != nil {
		return failed("Failed to retrieve beneficiaries", err)
	}
	summary := make([]beneficiarySummary, 0, len(items))
	for _, b := range items {
		summary = append(summary, beneficiarySummary{
			Name:         b.FullName,
			Relationship: orDefault(b.Relationship, "Not specified"),
			Email:        orDefault(b.ContactEmail, "Not provided"),
			Phone:        orDefault(b.ContactPhone, "Not provided"),
		})
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Found %d beneficiaries", len(items)),
		Data:    map[string]interface{}{"beneficiaries": summary, "total": len(items)},
	}, nil
}

func (t *Tools) createBeneficiary(ctx context.Context, userID string, args json.RawMessage) (domain.ToolResult, error) {
	var in beneficiaries.Input
	if err := decodeArgs(args, &in); err != nil {
		return domain.ToolResult{}, err
	}
	name := deref(in.FullName.Or(in.FullNameCamel).Value)
	created, err := t.beneficiaries.Create(ctx, userID, in)
	if err != nil {
		return failed(fmt.Sprintf("Failed to create beneficiary %q", name), err)
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Successfully created beneficiary %q", name),
		Data:    map[string]interface{}{"beneficiary": created},
	}, nil
}

func (t *Tools) updateBeneficiary(ctx context.Context, userID string, args json.RawMessage) (domain.ToolResult, error) {
	var req namedUpdate
	if err := decodeArgs(args, &req); err != nil {
		return domain.ToolResult{}, err
	}
	if strings.TrimSpace(req.BeneficiaryName) == "" {
		return missingName("beneficiary_name"), nil
	}
	items, err := t.beneficiaries.List(ctx, userID)
	if err != nil {
		return failed(fmt.Sprintf("Failed to update beneficiary %q", req.BeneficiaryName), err)
	}
	target, ok := findBeneficiary(items, req.BeneficiaryName)
	if !ok {
		return domain.ToolResult{Message: fmt.Sprintf("Beneficiary %q not found. Available beneficiaries: %s", req.BeneficiaryName, beneficiaryNames(items))}, nil
	}

	var in beneficiaries.Input
	if len(req.Updates) > 0 {
		if err := decodeArgs(req.Updates, &in); err != nil {
			return domain.ToolResult{}, err
		}
	}
	updated, err := t.beneficiaries.Update(ctx, userID, target.ID, in)
	if err != nil {
		return failed(fmt.Sprintf("Failed to update beneficiary %q", req.BeneficiaryName), err)
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Successfully updated beneficiary %q", target.FullName),
		Data:    map[string]interface{}{"beneficiary": updated},
	}, nil
}

func (t *Tools) deleteBeneficiary(ctx context.Context, userID string, args json.RawMessage) (domain.ToolResult, error) {
	var req namedUpdate
	if err := decodeArgs(args, &req); err != nil {
		return domain.ToolResult{}, err
	}
	if strings.TrimSpace(req.BeneficiaryName) == "" {
		return missingName("beneficiary_name"), nil
	}
	items, err := t.beneficiaries.List(ctx, userID)
	if err != nil {
		return failed(fmt.Sprintf("Failed to delete beneficiary %q", req.BeneficiaryName), err)
	}
	target, ok := findBeneficiary(items, req.BeneficiaryName)
	if !ok {
		return domain.ToolResult{Message: fmt.Sprintf("Beneficiary %q not found. Available beneficiaries: %s", req.BeneficiaryName, beneficiaryNames(items))}, nil
	}
	if err := t.beneficiaries.Delete(ctx, userID, target.ID); err != nil {
		return failed(fmt.Sprintf("Failed to delete beneficiary %q", req.BeneficiaryName), err)
	}
	return domain.ToolResult{Success: true, Message: fmt.Sprintf("Successfully deleted beneficiary %q", target.FullName)}, nil
}

// Analytics tools.

func (t *Tools) portfolioSummary(ctx context.Context, userID string, _ json.RawMessage) (domain.ToolResult, error) {
	items, err := t.assets.List(ctx, userID)
	if err != nil {
		return failed("Failed to generate portfolio summary", err)
	}
	bens, err := t.beneficiaries.List(ctx, userID)
	if err != nil {
		return failed("Failed to generate portfolio summary", err)
	}

	var total float64
	byType := make(map[string]int)
	assigned := 0
	for _, a := range items {
		if a.EstimatedValue != nil {
			total += *a.EstimatedValue
		}
		byType[string(a.Type)]++
		if a.BeneficiaryID != nil {
			assigned++
		}
	}
	rate := "0%"
	if len(items) > 0 {
		rate = fmt.Sprintf("%d%%", int(math.Round(float64(assigned)/float64(len(items))*100)))
	}

	return domain.ToolResult{
		Success: true,
		Message: "Portfolio summary generated successfully",
		Data: map[string]interface{}{
			"totalAssets":        len(items),
			"totalValue":         total,
			"formattedValue":     dollars(total),
			"assetsByType":       byType,
			"totalBeneficiaries": len(bens),
			"assignedAssets":     assigned,
			"unassignedAssets":   len(items) - assigned,
			"assignmentRate":     rate,
		},
	}, nil
}

type assignedEntry struct {
	Asset       string     `json:"asset"`
	Beneficiary string     `json:"beneficiary,omitempty"`
	Type        asset.Type `json:"type"`
	Value       string     `json:"value"`
}

func (t *Tools) assignmentStatus(ctx context.Context, userID string, _ json.RawMessage) (domain.ToolResult, error) {
	items, err := t.assets.List(ctx, userID)
	if err != nil {
		return failed("Failed to check asset assignment status", err)
	}
	assigned := make([]assignedEntry, 0)
	unassigned := make([]assignedEntry, 0)
	for _, a := range items {
		entry := assignedEntry{Asset: a.Name, Type: a.Type, Value: valueText(a.EstimatedValue)}
		if a.BeneficiaryID == nil {
			unassigned = append(unassigned, entry)
			continue
		}
		if a.Beneficiary != nil {
			entry.Beneficiary = a.Beneficiary.FullName
		}
		assigned = append(assigned, entry)
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Asset assignment status: %d assigned, %d unassigned", len(assigned), len(unassigned)),
		Data:    map[string]interface{}{"assigned": assigned, "unassigned": unassigned},
	}, nil
}

// Profile tools.

func (t *Tools) getProfile(ctx context.Context, userID string, _ json.RawMessage) (domain.ToolResult, error) {
	p, err := t.profiles.Get(ctx, userID)
	if err != nil {
		return failed("Failed to retrieve profile information", err)
	}
	return domain.ToolResult{
		Success: true,
		Message: "Profile information retrieved",
		Data: map[string]interface{}{
			"name":             orDefault(p.FullName, "Not set"),
			"subscriptionTier": p.SubscriptionTier,
			"memberSince":      p.CreatedAt.Format("1/2/2006"),
		},
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
