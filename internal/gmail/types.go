package gmail

// Response shapes consumed from the Gmail REST API. Fields we do not use are
// omitted; missing fields decode to zero values and are tolerated.

type messageRef struct {
	ID string `json:"id"`
}

type listResponse struct {
	Messages           []messageRef `json:"messages"`
	NextPageToken      string       `json:"nextPageToken"`
	ResultSizeEstimate int64        `json:"resultSizeEstimate"`
}

type messageHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type messageBody struct {
	Size int64  `json:"size"`
	Data string `json:"data"`
}

type messagePart struct {
	MimeType string          `json:"mimeType"`
	Headers  []messageHeader `json:"headers"`
	Body     *messageBody    `json:"body"`
	Parts    []messagePart   `json:"parts"`
}

type messageDetail struct {
	ID       string       `json:"id"`
	ThreadID string       `json:"threadId"`
	LabelIDs []string     `json:"labelIds"`
	Snippet  string       `json:"snippet"`
	Payload  *messagePart `json:"payload"`
}

type profileResponse struct {
	EmailAddress string `json:"emailAddress"`
}

// apiError is the error envelope Gmail returns on non-2xx responses.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// tokenError is the OAuth token endpoint error shape.
type tokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
