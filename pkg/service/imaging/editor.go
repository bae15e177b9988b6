package imaging

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
)

// Editor sends {"image": <base64>, "instruction": "..."} to a remote editing model and reads
// {"image": <base64>, "status": "..."} back.
type Editor struct {
	client   *http.Client
	endpoint string
	token    string
}

var _ interfaces.ImageEditor = &Editor{}

type EditorOption func(*Editor)

func WithEditorHTTPClient(client *http.Client) EditorOption {
	return func(e *Editor) {
		e.client = client
	}
}

func NewEditor(endpoint, token string, opts ...EditorOption) (*Editor, error) {
	if endpoint == "" {
		return nil, goerr.New("image editor endpoint is required")
	}

	e := &Editor{
		client:   http.DefaultClient,
		endpoint: endpoint,
		token:    token,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type editRequest struct {
	Image       string `json:"image"`
	Instruction string `json:"instruction"`
}

type editResponse struct {
	Image  string `json:"image"`
	Status string `json:"status"`
}

func (e *Editor) Edit(ctx context.Context, image []byte, instruction string) ([]byte, string, error) {
	if len(image) == 0 {
		return nil, "", goerr.New("image is empty")
	}
	if instruction == "" {
		return nil, "", goerr.New("edit instruction is empty")
	}

	body, err := json.Marshal(editRequest{
		Image:       base64.StdEncoding.EncodeToString(image),
		Instruction: instruction,
	})
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to encode edit request")
	}

	payload, err := post(ctx, e.client, e.endpoint, e.token, "application/json", body)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to edit image", goerr.V("instruction", instruction))
	}

	var resp editResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, "", goerr.Wrap(err, "failed to decode edit response", goerr.V("body", excerpt(payload)))
	}

	edited, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, "", goerr.Wrap(err, "edited image is not valid base64")
	}
	if len(edited) == 0 {
		return nil, "", goerr.New("editor returned no image", goerr.V("status", resp.Status))
	}

	return edited, resp.Status, nil
}
