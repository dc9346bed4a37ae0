package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/R3E-Network/fortivo/internal/app/domain/patch"
	"github.com/R3E-Network/fortivo/internal/app/services/assets"
	"github.com/R3E-Network/fortivo/internal/app/services/beneficiaries"
)

const commandHelp = "Unknown command. Available commands:\n- add asset [name]\n- remove asset [name]\n- add beneficiary [name]\n- remove beneficiary [name]"

// CommandResult is the outcome of a legacy text command.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// IsCommand reports whether text is a legacy command rather than a prompt.
func IsCommand(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(lower, "add ") || strings.HasPrefix(lower, "remove ")
}

// Commands executes the "add asset ..." family of text commands.
type Commands struct {
	assets        AssetManager
	beneficiaries BeneficiaryManager
}

// NewCommands binds the command set to the given services.
func NewCommands(a AssetManager, b BeneficiaryManager) *Commands {
	return &Commands{assets: a, beneficiaries: b}
}

// Execute runs a lowercased command for userID.
func (c *Commands) Execute(ctx context.Context, userID, text string) CommandResult {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(text)), " ")
	verb := parts[0]
	noun := ""
	if len(parts) > 1 {
		noun = parts[1]
	}
	arg := ""
	if len(parts) > 2 {
		arg = strings.TrimSpace(strings.Join(parts[2:], " "))
	}

	var (
		res CommandResult
		err error
	)
	switch verb + " " + noun {
	case "add asset":
		res, err = c.addAsset(ctx, userID, arg)
	case "remove asset":
		res, err = c.removeAsset(ctx, userID, arg)
	case "add beneficiary":
		res, err = c.addBeneficiary(ctx, userID, arg)
	case "remove beneficiary":
		res, err = c.removeBeneficiary(ctx, userID, arg)
	default:
		return CommandResult{Message: commandHelp}
	}
	if err != nil {
		return CommandResult{Message: errorText(err)}
	}
	return res
}

func (c *Commands) addAsset(ctx context.Context, userID, description string) (CommandResult, error) {
	if description == "" {
		return CommandResult{Message: "Please provide an asset description"}, nil
	}
	parsed := ParseAssetDescription(description)

	in := assets.Input{
		Name:        patch.Of(parsed.Name),
		Type:        patch.Of(string(parsed.Type)),
		Description: patch.Of(description),
	}
	if parsed.EstimatedValue != nil {
		in.EstimatedValue = patch.Of(patch.Number(*parsed.EstimatedValue))
	}
	if parsed.Location != nil {
		in.Location = patch.Of(*parsed.Location)
	}
	if parsed.BeneficiaryName != nil {
		bens, err := c.beneficiaries.List(ctx, userID)
		if err != nil {
			return CommandResult{}, err
		}
		for _, b := range bens {
			if strings.EqualFold(b.FullName, *parsed.BeneficiaryName) {
				in.BeneficiaryID = patch.Of(b.ID)
				break
			}
		}
	}
	if _, err := c.assets.Create(ctx, userID, in); err != nil {
		return CommandResult{}, err
	}

	value := "Not specified"
	if parsed.EstimatedValue != nil && *parsed.EstimatedValue != 0 {
		value = "$" + strconv.FormatFloat(*parsed.EstimatedValue, 'f', -1, 64)
	}
	msg := fmt.Sprintf("Asset %q has been added successfully with the following details:\n- Type: %s\n- Value: %s\n- Location: %s\n- Beneficiary: %s",
		parsed.Name, parsed.Type, value,
		orDefault(parsed.Location, "Not specified"),
		orDefault(parsed.BeneficiaryName, "Not specified"))
	return CommandResult{Success: true, Message: msg}, nil
}

func (c *Commands) removeAsset(ctx context.Context, userID, name string) (CommandResult, error) {
	if name == "" {
		return CommandResult{Message: "Please provide an asset name"}, nil
	}
	items, err := c.assets.List(ctx, userID)
	if err != nil {
		return CommandResult{}, err
	}
	for _, a := range items {
		if !strings.EqualFold(a.Name, name) {
			continue
		}
		if err := c.assets.Delete(ctx, userID, a.ID); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Success: true, Message: fmt.Sprintf("Asset %q has been removed successfully", name)}, nil
	}
	return CommandResult{Message: fmt.Sprintf("Asset %q not found", name)}, nil
}

func (c *Commands) addBeneficiary(ctx context.Context, userID, name string) (CommandResult, error) {
	if name == "" {
		return CommandResult{Message: "Please provide a beneficiary name"}, nil
	}
	if _, err := c.beneficiaries.Create(ctx, userID, beneficiaries.Input{FullName: patch.Of(name)}); err != nil {
		return CommandResult{}, err
	}
	return CommandResult{Success: true, Message: fmt.Sprintf("Beneficiary %q has been added successfully", name)}, nil
}

func (c *Commands) removeBeneficiary(ctx context.Context, userID, name string) (CommandResult, error) {
	if name == "" {
		return CommandResult{Message: "Please provide a beneficiary name"}, nil
	}
	items, err := c.beneficiaries.List(ctx, userID)
	if err != nil {
		return CommandResult{}, err
	}
	for _, b := range items {
		if !strings.EqualFold(b.FullName, name) {
			continue
		}
		if err := c.beneficiaries.Delete(ctx, userID, b.ID); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Success: true, Message: fmt.Sprintf("Beneficiary %q has been removed successfully", name)}, nil
	}
	return CommandResult{Message: fmt.Sprintf("Beneficiary %q not found", name)}, nil
}
