package chat

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/R3E-Network/fortivo/internal/app/domain/asset"
)

var (
	valuedPattern      = regexp.MustCompile(`(?i)valued (?:at |in )?(\d+)`)
	locationPattern    = regexp.MustCompile(`(?i)(?:is |located |placed |situated |)in ([^,\.]+)(?:,|\.|$)`)
	beneficiaryPattern = regexp.MustCompile(`(?i)(?:is |)for ([^\s,\.]+)`)
	typePattern        = regexp.MustCompile(`(?i)is (physical|financial|digital)`)
)

// ParsedAsset is an asset described in free text.
type ParsedAsset struct {
	Name            string     `json:"name"`
	Type            asset.Type `json:"type"`
	EstimatedValue  *float64   `json:"estimated_value"`
	Location        *string    `json:"location"`
	BeneficiaryName *string    `json:"beneficiary_name"`
}

// ParseAssetDescription extracts asset fields from text such as
// "gold watch valued at 500 is physical in the safe, for anna".
func ParseAssetDescription(text string) ParsedAsset {
	parsed := ParsedAsset{Type: asset.TypeOther}

	if m := valuedPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			parsed.EstimatedValue = &v
		}
	}
	if m := locationPattern.FindStringSubmatch(text); m != nil {
		loc := strings.TrimSpace(m[1])
		parsed.Location = &loc
	}
	if m := beneficiaryPattern.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		parsed.BeneficiaryName = &name
	}
	if m := typePattern.FindStringSubmatch(text); m != nil {
		parsed.Type = asset.Type(strings.ToLower(m[1]))
	}

	name := text
	if before, _, ok := strings.Cut(text, "valued"); ok {
		name = before
	} else if before, _, ok := strings.Cut(text, " is "); ok {
		name = before
	}
	parsed.Name = strings.TrimSpace(name)
	return parsed
}
