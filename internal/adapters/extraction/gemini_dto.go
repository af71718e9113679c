package extraction

// systemInstruction tells the vision model how to read a shipping label.
const systemInstruction = `You are a label reading engine for last-mile delivery drivers. Replace traditional OCR with intelligent, normalized extraction of shipping labels.

TECHNICAL INSTRUCTIONS:
1. EXTRACTION: identify recipient name, street address, neighborhood, city, country, postal code and phone.
2. NORMALIZATION:
   - Postal code: use the standard format of the destination country (for Brazil 00000-000).
   - Phone: include the area code.
   - Country: if it is not printed on the label, infer it from the postal code or context.
3. RESILIENCE: if the image is blurry or a field is illegible, fill that field with "unknown". Never invent data.
4. REPORT: in "passo_a_passo" write exactly one short sentence for the driver (e.g. "Address validated" or "Warning: recipient name illegible").

ANSWER: return ONLY the JSON object. No explanations. No markdown.

JSON STRUCTURE:
{
  "nome": "string",
  "endereco": "string",
  "bairro": "string",
  "cidade": "string",
  "pais": "string",
  "cep": "string",
  "telefone": "string",
  "passo_a_passo": "string"
}`

const userPrompt = "Analyze the label and return the structured JSON."

// labelFields is the strict response schema. Pointers distinguish an omitted
// field from an empty one.
type labelFields struct {
	Name         *string `json:"nome"`
	Address      *string `json:"endereco"`
	Neighborhood *string `json:"bairro"`
	City         *string `json:"cidade"`
	Country      *string `json:"pais"`
	PostalCode   *string `json:"cep"`
	Phone        *string `json:"telefone"`
	GuidanceNote *string `json:"passo_a_passo"`
}

var schemaProperties = []string{
	"nome", "endereco", "bairro", "cidade", "pais", "cep", "telefone", "passo_a_passo",
}

var requiredFields = []string{"nome", "endereco", "cidade", "cep", "passo_a_passo"}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type       string            `json:"type"`
	Properties map[string]schema `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type generateRequest struct {
	SystemInstruction content          `json:"systemInstruction"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

func newGenerateRequest(imageBase64 string) generateRequest {
	props := make(map[string]schema, len(schemaProperties))
	for _, p := range schemaProperties {
		props[p] = schema{Type: "STRING"}
	}

	return generateRequest{
		SystemInstruction: content{Parts: []part{{Text: systemInstruction}}},
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: "image/jpeg", Data: imageBase64}},
				{Text: userPrompt},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: schema{
				Type:       "OBJECT",
				Properties: props,
				Required:   requiredFields,
			},
		},
	}
}
