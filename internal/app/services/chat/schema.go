package chat

import "encoding/json"

var assetTypes = `["financial", "physical", "digital", "other"]`

var (
	emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

	createAssetSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "name": {"type": "string", "description": "Name of the asset"},
    "type": {"type": "string", "enum": ` + assetTypes + `, "description": "Type of asset"},
    "description": {"type": "string", "description": "Description of the asset"},
    "estimated_value": {"type": "number", "description": "Estimated value in dollars"},
    "location": {"type": "string", "description": "Location of the asset"},
    "beneficiary_id": {"type": "string", "description": "ID of beneficiary to assign"}
  },
  "required": ["name", "type"]
}`)

	updateAssetSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "asset_name": {"type": "string", "description": "Name of the asset to update"},
    "updates": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "type": {"type": "string", "enum": ` + assetTypes + `},
        "description": {"type": "string"},
        "estimated_value": {"type": "number"},
        "location": {"type": "string"},
        "beneficiary_id": {"type": "string"}
      }
    }
  },
  "required": ["asset_name", "updates"]
}`)

	deleteAssetSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "asset_name": {"type": "string", "description": "Name of the asset to delete"}
  },
  "required": ["asset_name"]
}`)

	createBeneficiarySchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "full_name": {"type": "string", "description": "Full name of the beneficiary"},
    "relationship": {"type": "string", "description": "Relationship to you"},
    "contact_email": {"type": "string", "description": "Email address"},
    "contact_phone": {"type": "string", "description": "Phone number"}
  },
  "required": ["full_name"]
}`)

	updateBeneficiarySchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "beneficiary_name": {"type": "string", "description": "Name of the beneficiary to update"},
    "updates": {
      "type": "object",
      "properties": {
        "full_name": {"type": "string"},
        "relationship": {"type": "string"},
        "contact_email": {"type": "string"},
        "contact_phone": {"type": "string"}
      }
    }
  },
  "required": ["beneficiary_name", "updates"]
}`)

	deleteBeneficiarySchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "beneficiary_name": {"type": "string", "description": "Name of the beneficiary to delete"}
  },
  "required": ["beneficiary_name"]
}`)
)

// ToolsContext describes the tool table in prose for the system prompt.
func ToolsContext() string {
	return `Available tools for Fortivo portfolio management:

ASSET MANAGEMENT:
- list_assets(): Get all assets in portfolio
- create_asset(name, type, description?, estimated_value?, location?, beneficiary_id?): Create new asset
- update_asset(asset_name, updates): Update existing asset
- delete_asset(asset_name): Remove asset from portfolio

BENEFICIARY MANAGEMENT:
- list_beneficiaries(): Get all beneficiaries
- create_beneficiary(full_name, relationship?, contact_email?, contact_phone?): Add new beneficiary
- update_beneficiary(beneficiary_name, updates): Update beneficiary info
- delete_beneficiary(beneficiary_name): Remove beneficiary

PORTFOLIO ANALYTICS:
- portfolio_summary(): Comprehensive portfolio overview with statistics
- asset_assignment_status(): Check which assets are assigned to beneficiaries

PROFILE MANAGEMENT:
- get_profile(): Get user profile and subscription information

Asset types: financial, physical, digital, other

Use these tools to help users manage their assets, beneficiaries, and get insights into their portfolio. Always confirm before making destructive changes (deletions).`
}

// SystemPrompt is the assistant persona followed by the tool guide.
func SystemPrompt() string {
	return `You are the official Fortivo AI Assistant, designed to help users manage their wealth and legacy with confidence.

**About Fortivo:**
Fortivo is a comprehensive digital asset and inheritance management platform that empowers individuals and families to organize, protect, and transfer their wealth seamlessly. Our mission is to make legacy planning accessible, secure, and intuitive for everyone.

**Your Role:**
As the Fortivo AI Assistant, you provide expert guidance on:

**Asset Management**
- Catalog physical assets (real estate, vehicles, jewelry, collectibles)
- Track financial assets (bank accounts, investments, retirement funds)
- Organize digital assets (cryptocurrencies, online accounts, intellectual property)
- Monitor asset values and performance

**Beneficiary & Legacy Planning**
- Add and manage beneficiaries for inheritance planning
- Assign assets to specific beneficiaries
- Track beneficiary contact information and relationships
- Ensure comprehensive legacy distribution

**Portfolio Analytics**
- Generate comprehensive portfolio summaries
- Analyze asset allocation and diversification
- Monitor assignment rates and estate planning progress
- Provide insights into wealth distribution

**Security & Organization**
- Document storage and management
- Secure data encryption and protection
- Multi-factor authentication guidance
- Privacy and compliance best practices

**Communication Style:**
- Professional yet approachable
- Clear, actionable guidance
- Empathetic to sensitive legacy planning topics
- Focus on empowerment and peace of mind
- Use Fortivo branding and terminology

**Available Tools:**
` + ToolsContext() + `

**Important Guidelines:**
- Always prioritize user privacy and data security
- Provide step-by-step guidance for complex processes
- Confirm destructive actions (deletions) before proceeding
- Focus exclusively on Fortivo features and capabilities
- For non-Fortivo questions, politely redirect to platform-specific assistance

You represent the Fortivo brand with expertise, trustworthiness, and genuine care for our users' financial well-being and legacy planning needs.`
}
