package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"defrec/internal/memory"
	"defrec/internal/record"
	"defrec/internal/taxonomy"
)

// groundingTruncation caps the quoted past description so the one-shot
// example does not crowd out the taxonomy in the prompt.
const groundingTruncation = 300

// groundedFields are the classification fields quoted from a memory match.
var groundedFields = []string{
	record.FieldMarketSegment,
	record.FieldSystemTypeGeneral,
	record.FieldSystemTypeSpecific,
	record.FieldSystemNameGeneral,
	record.FieldSystemNameSpecific,
	record.FieldSystemPiloting,
}

const taxonomySystemTemplate = `You are a Defense Contract Analyst.
Your goal is to extract technical data points from the "Input Text".

REFERENCE TAXONOMY:
%s`

const taxonomyRequirements = `--------------------------------------------------------
REQUIREMENTS:
1. Classify 'Market Segment', 'System Type (General)', 'System Type (Specific)' using the Taxonomy.
   - Hierarchy is strict: you cannot select a General type that does not belong to the chosen Segment,
     or a Specific type that does not belong to the chosen General type.
   - Use "Not Applicable" if a level is not specified in the text.
2. Extract 'System Name (Specific)' (e.g., MC-130J) and 'System Name (General)' (e.g., C-130).
3. Determine 'System Piloting' (Crewed, Uncrewed, or Not Applicable).
   - Software/Services/Ammo/Infra = "Not Applicable".
   - Manned Vehicles = "Crewed".
   - Drones/Satellites = "Uncrewed".

Return JSON only with these exact keys:
{
    "Market Segment": "...",
    "System Type (General)": "...",
    "System Type (Specific)": "...",
    "System Name (General)": "...",
    "System Name (Specific)": "...",
    "System Piloting": "..."
}`

// buildTaxonomyPrompt returns the system and user messages for stage 1,
// injecting the grounding example when one exists.
func buildTaxonomyPrompt(description string, grounding *memory.Example) (system, user string) {
	system = fmt.Sprintf(taxonomySystemTemplate, taxonomy.PromptText())

	var b strings.Builder
	fmt.Fprintf(&b, "Input Text: %s\n\n", description)

	if grounding != nil {
		past := grounding.Description
		// Truncate on rune boundaries so multi-byte text stays valid UTF-8.
		if r := []rune(past); len(r) > groundingTruncation {
			past = string(r[:groundingTruncation])
		}
		classification := make(map[string]string, len(groundedFields))
		for _, f := range groundedFields {
			if v := grounding.Fields[f]; v != "" {
				classification[f] = v
			}
		}
		classJSON, _ := json.Marshal(classification)
		fmt.Fprintf(&b, `IMPORTANT REFERENCE - Here is a similar contract classified by a human analyst.
Use this as a guide for your logic:

[Past Input]: %s...
[Past Correct Output]: %s

Now, apply the same logic to the current Input Text.

`, past, classJSON)
	}

	b.WriteString(taxonomyRequirements)
	return system, b.String()
}

const geographyTemplate = `You are a defence contract geography analyst.
YOUR TASK: Extract Customer and Supplier locations and Customer Operator.

STRICT RULES:
1. **Supplier Country**: The country where the supplier company is BASED (not necessarily HQ).
2. **Special Circumstance - Ukraine**:
   - If a country buys equipment UNILATERALLY for Ukraine -> Customer: [Purchasing Country], Operator: "Ukraine (Assistance)".
3. **CUSTOMER OPERATOR (CRITICAL - NO HALLUCINATION):**
   - You MUST pick one value from the provided list ONLY.
   - If the operator in the text is "Naval Information Warfare Center", map it to "Navy".
   - If "Air Force Life Cycle Management Center", map it to "Air Force".
   - **VALID LIST:** %s

MAPPING:
%s

Return JSON ONLY:
{
  "Customer Region": "...",
  "Customer Country": "...",
  "Customer Operator": "...",
  "Supplier Region": "...",
  "Supplier Country": "..."
}

Description:
"""
%s
"""`

func buildGeographyPrompt(description string) string {
	return fmt.Sprintf(geographyTemplate,
		strings.Join(taxonomy.ValidOperators, ", "),
		taxonomy.GeographyPromptText(),
		description)
}

const domesticTemplate = `You are a defence procurement analyst.
YOUR TASK: Classify the "Domestic Content" based on the text.

STRICT DEFINITIONS:
1. Imported: Product originates from a different country and is physically imported.
2. Indigenous: Product is produced within the customer's country.
   - NOTE: This INCLUDES local production units/subsidiaries of a foreign company located in the customer's country.
3. Local Assembly: Components manufactured abroad, imported, and assembled locally (CKD/SKD).
4. License Production: Local company manufactures a foreign product under a licensing agreement.

INPUT CONTEXT:
- Supplier Country: %s
- Customer Country: %s

OPTIONS:
%s

Return JSON ONLY:
{
  "Domestic Content": "..."
}

Description:
"""
%s
"""`

func buildDomesticPrompt(description, supplierCountry, customerCountry string) string {
	return fmt.Sprintf(domesticTemplate,
		supplierCountry, customerCountry,
		strings.Join(taxonomy.DomesticContentOptions, ", "),
		description)
}

const financialTemplate = `You are a defence contract financial and program analyst.
YOUR TASK: Extract supplier, program info, and financials.

%s

STRICT RULES:

1. **Program Type (CHOOSE EXACTLY ONE of: %s)**:
   - **Training**: Purchase of military training *services*. Purchase of training aircraft or simulators falls under "Procurement".
   - **Procurement**: Acquisition of new products, systems, or production kits. Includes services, repairs, or modifications performed on *test articles* or prototypes to support development/production.
   - **MRO/Support**: Maintenance, Repair, and Operations. Select ONLY for sustainment/repair of *existing, fielded, operational* equipment.
   - **RDT&E**: Contracts primarily for research, prototyping, or testing where the outcome is knowledge/design validation rather than a fielded product.
   - **Upgrade**: Purchase of components/services to modernize existing equipment.
   - **Other Service**: General consulting, IT support, or services not tied to a specific weapon system's lifecycle.
   - **Unknown**: If the program type cannot be determined.

2. **Supplier Name (CRITICAL)**:
   - Identify the specific entity that has been AWARDED the contract / is performing the work.
   - Output the **Clean Brand Name**: remove legal suffixes ("Inc", "LLC", "Corp") and location details.
     Example: "Lockheed Martin Aeronautics Co." -> "Lockheed Martin".
   - If the specific supplier is unclear, extract the first company name mentioned in the text.

3. **Quantity (Crucial)**:
   - Hardware/Missiles: EXTRACT the total count. If text lists several lots, SUM THEM UP.
   - Services/RDT&E/IT: Use "Not Applicable".
   - If hardware is bought but no number is given, use "Unknown".

4. **Value Calculation**:
   - Convert to **MILLIONS**, round to **3 decimal places**, no currency symbols or text.
   - Ex: $2,493,000,000 -> "2493.000"

5. **Value Certainty**:
   - **Confirmed** is the DEFAULT for definitive awards, modifications, BPAs, and IDIQs with a stated value or ceiling.
   - **Estimated** ONLY if the text explicitly frames the value as potential, approximate, or projected outside the current award.

6. **Description Date Found**:
   - For MRO contracts, extract the completion date. Otherwise leave empty.

Return JSON ONLY:
{
  "Supplier Name": "...",
  "Program Type": "...",
  "Quantity": "...",
  "Value Certainty": "...",
  "Value (Million)": "...",
  "Currency": "...",
  "Description Date Found": "..."
}

Description:
"""
%s
"""`

func buildFinancialPrompt(description string, gold []GoldExample) string {
	return fmt.Sprintf(financialTemplate,
		renderGold(gold),
		strings.Join(taxonomy.ProgramTypes, ", "),
		description)
}
