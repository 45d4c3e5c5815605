package assessment

// Role of a chat turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatTurn satu giliran percakapan; urutan slice = urutan percakapan
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// File is the image selected for an assessment.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
}

// NewFile copies data so the caller may reuse its buffer.
func NewFile(name, contentType string, data []byte) File {
	buf := make([]byte, len(data))
	copy(buf, data)
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(buf)),
		Data:        buf,
	}
}

// Preview is a transient handle over the selected file's bytes, for display only.
// It must be released when superseded.
type Preview struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Prediction value object (one class)
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// PredictionResult is the normalized outcome of the analyze call.
// Confidence and probability values are fractions in [0,1].
type PredictionResult struct {
	Label         string        `json:"label"`
	Confidence    float64       `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
}

// AdvisoryResult short guidance text keyed by predicted class and confidence
type AdvisoryResult struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	NextSteps  string `json:"next_steps"`
	Prevention string `json:"prevention,omitempty"`
	Disclaimer string `json:"disclaimer"`
}

// RankedProbability is one row of the display projection.
type RankedProbability struct {
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
}

// State is the single mutable record of one assessment.
type State struct {
	File        *File             `json:"file,omitempty"`
	PreviewURL  string            `json:"preview_url,omitempty"`
	IsAnalyzing bool              `json:"is_analyzing"`
	Result      *PredictionResult `json:"result,omitempty"`
	Advisory    *AdvisoryResult   `json:"advisory,omitempty"`
}

const (
	// FailureNotice is what the user sees when an analysis fails.
	FailureNotice = "Analysis failed. Please try again."

	// ChatFallbackReply replaces the assistant reply whenever a chat turn fails.
	ChatFallbackReply = "I'm having trouble connecting to the advisory service. Please try again later."
)
