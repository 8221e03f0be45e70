package models

// UploadInitRequest is the body of an upload admission request. The client
// declares what it intends to upload; nothing is transferred yet.
type UploadInitRequest struct {
	// ContentType of the file the client wants to upload
	ContentType string `json:"contentType"`

	// Size in bytes as declared by the client
	Size int64 `json:"size"`

	// Extension requested for the object key (sanitized server-side)
	Extension string `json:"extension,omitempty"`

	// Fingerprint identifies the device across requests
	Fingerprint string `json:"fingerprint"`

	// Hash is the content hash of the file (hex, at least 16 chars)
	Hash string `json:"hash"`

	// CaptchaToken is the Turnstile response token
	CaptchaToken string `json:"captchaToken"`

	// Width and Height are optional declared image dimensions. Pointers
	// distinguish absent values from an explicit zero.
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`
}

// UploadInitResponse grants one signed PUT to the admitted client.
type UploadInitResponse struct {
	// UploadURL is the signed URL to PUT the file to
	UploadURL string `json:"uploadUrl"`

	// FileURL is the public URL where the object will be readable
	FileURL string `json:"fileUrl"`

	// Path is the object key inside the bucket
	Path string `json:"path"`

	// Token is an opaque upload token, when the provider issues one
	Token string `json:"token,omitempty"`

	// ExpiresIn is the grant lifetime in seconds
	ExpiresIn int `json:"expiresIn"`

	// Method the client must use for the upload
	Method string `json:"method"`

	// Headers the client must send with the upload
	Headers map[string]string `json:"headers"`
}

// AnalysisRequest is the body of a face analysis request. Image is either a
// base64 data URI or an already-public URL.
type AnalysisRequest struct {
	Image string `json:"image"`
}

// AnalysisResponse carries the model output verbatim plus the structured
// JSON extracted from it, when present.
type AnalysisResponse struct {
	Raw      string         `json:"raw"`
	Parsed   map[string]any `json:"parsed"`
	ImageURL string         `json:"imageUrl"`
}

// LeadRequest is the body of a lead capture request.
type LeadRequest struct {
	Email string `json:"email"`
	Site  string `json:"site,omitempty"`
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`

	// Hash echoes the content hash on duplicate rejections
	Hash string `json:"hash,omitempty"`

	// Details carries upstream error context, when available
	Details string `json:"details,omitempty"`
}

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
	Services map[string]string `json:"services,omitempty"`
}
