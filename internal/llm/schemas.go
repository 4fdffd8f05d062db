package llm

// NorwoodAnalysisResult is the structured verdict for a single-photo
// analysis.
type NorwoodAnalysisResult struct {
	NorwoodStage int    `json:"norwood_stage" validate:"required,min=1,max=7"`
	Confidence   string `json:"confidence" validate:"required,oneof=high medium low"`
	Title        string `json:"title" validate:"required,max=100"`
	Description  string `json:"description" validate:"required"`
	AnalysisText string `json:"analysis_text" validate:"required"`
	Reasoning    string `json:"reasoning" validate:"required"`
}

func (NorwoodAnalysisResult) ToolName() string { return "NorwoodAnalysisResult" }

func (NorwoodAnalysisResult) ToolInputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"norwood_stage": map[string]any{
				"type": "integer", "minimum": 1, "maximum": 7,
				"description": "Norwood stage from 1-7",
			},
			"confidence": map[string]any{
				"type": "string", "enum": []string{"high", "medium", "low"},
				"description": "Confidence level",
			},
			"title": map[string]any{
				"type": "string", "maxLength": 100,
				"description": "Punchy, memorable title for the analysis",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Brief, matter-of-fact description of their hair situation",
			},
			"analysis_text": map[string]any{
				"type":        "string",
				"description": "Philosophical reflection on the diagnosis, stoic tone",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Clinical observations that led to this diagnosis",
			},
		},
		"required":             []string{"norwood_stage", "confidence", "title", "description", "analysis_text", "reasoning"},
		"additionalProperties": false,
	}
}

// PhotoValidationResult is the structured verdict for one certification
// photo.
type PhotoValidationResult struct {
	Approved        bool   `json:"approved"`
	RejectionReason string `json:"rejection_reason"`
	QualityNotes    string `json:"quality_notes" validate:"required"`
}

func (PhotoValidationResult) ToolName() string { return "PhotoValidationResult" }

func (PhotoValidationResult) ToolInputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"approved": map[string]any{
				"type":        "boolean",
				"description": "Whether the photo meets quality requirements",
			},
			"rejection_reason": map[string]any{
				"type":        "string",
				"description": "If rejected, why. E.g., 'Hairline obscured by hat'",
			},
			"quality_notes": map[string]any{
				"type":        "string",
				"description": "What was observed about photo quality and hairline visibility",
			},
		},
		"required":             []string{"approved", "quality_notes"},
		"additionalProperties": false,
	}
}

// CertificationDiagnosis is the clinical verdict derived from the three
// approved certification photos.
type CertificationDiagnosis struct {
	NorwoodStage               int      `json:"norwood_stage" validate:"required,min=1,max=7"`
	NorwoodVariant             string   `json:"norwood_variant" validate:"omitempty,oneof=A V"`
	Confidence                 float64  `json:"confidence" validate:"min=0,max=1"`
	ClinicalAssessment         string   `json:"clinical_assessment" validate:"required"`
	ObservableFeatures         []string `json:"observable_features" validate:"required,min=1"`
	DifferentialConsiderations string   `json:"differential_considerations" validate:"required"`
}

func (CertificationDiagnosis) ToolName() string { return "CertificationDiagnosis" }

func (CertificationDiagnosis) ToolInputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"norwood_stage": map[string]any{
				"type": "integer", "minimum": 1, "maximum": 7,
				"description": "Norwood-Hamilton stage from 1-7",
			},
			"norwood_variant": map[string]any{
				"type": "string", "enum": []string{"A", "V"},
				"description": "Variant if applicable: 'A' (anterior) or 'V' (vertex)",
			},
			"confidence": map[string]any{
				"type": "number", "minimum": 0.0, "maximum": 1.0,
				"description": "Confidence score from 0.0 to 1.0",
			},
			"clinical_assessment": map[string]any{
				"type":        "string",
				"description": "Formal clinical assessment in medical language",
			},
			"observable_features": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "List of observed features supporting the diagnosis",
			},
			"differential_considerations": map[string]any{
				"type":        "string",
				"description": "Why this stage vs adjacent stages, ruling out alternatives",
			},
		},
		"required":             []string{"norwood_stage", "confidence", "clinical_assessment", "observable_features", "differential_considerations"},
		"additionalProperties": false,
	}
}
