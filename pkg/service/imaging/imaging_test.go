package imaging_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/service/imaging"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDescriber_Describe(t *testing.T) {
	var gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`[{"generated_text": " a garden "}]`))
	}))
	defer srv.Close()

	d, err := imaging.NewDescriber(srv.URL, "hf_token", imaging.WithDescriberHTTPClient(srv.Client()))
	gt.NoError(t, err).Required()

	caption, err := d.Describe(context.Background(), pngHeader)
	gt.NoError(t, err).Required()
	gt.Value(t, caption).Equal("a garden")
	gt.Value(t, gotAuth).Equal("Bearer hf_token")
	gt.Value(t, gotType).Equal("image/png")
	gt.Value(t, gotBody).Equal(pngHeader)
}

func TestDescriber_Failures(t *testing.T) {
	t.Run("endpoint required", func(t *testing.T) {
		_, err := imaging.NewDescriber("", "")
		gt.Value(t, err).NotNil()
	})

	t.Run("empty image", func(t *testing.T) {
		d, err := imaging.NewDescriber("http://127.0.0.1:1", "")
		gt.NoError(t, err).Required()
		_, err = d.Describe(context.Background(), nil)
		gt.Value(t, err).NotNil()
	})

	cases := map[string]http.HandlerFunc{
		"model loading": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": "Model is currently loading"}`))
		},
		"empty caption": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"generated_text": ""}]`))
		},
		"empty list": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`oops`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			d, err := imaging.NewDescriber(srv.URL, "")
			gt.NoError(t, err).Required()
			caption, err := d.Describe(context.Background(), pngHeader)
			gt.Value(t, err).NotNil()
			gt.Value(t, caption).Equal("")
		})
	}
}

func TestEditor_Edit(t *testing.T) {
	edited := []byte("edited-image-bytes")

	var got struct {
		Image       string `json:"image"`
		Instruction string `json:"instruction"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.Header.Get("Content-Type")).Equal("application/json")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"image":  base64.StdEncoding.EncodeToString(edited),
			"status": "Image modifiée (steps=20, guidance=7.5)",
		})
	}))
	defer srv.Close()

	e, err := imaging.NewEditor(srv.URL, "", imaging.WithEditorHTTPClient(srv.Client()))
	gt.NoError(t, err).Required()

	out, status, err := e.Edit(context.Background(), pngHeader, "add flowers")
	gt.NoError(t, err).Required()
	gt.Value(t, out).Equal(edited)
	gt.Value(t, status).Equal("Image modifiée (steps=20, guidance=7.5)")
	gt.Value(t, got.Instruction).Equal("add flowers")
	gt.Value(t, got.Image).Equal(base64.StdEncoding.EncodeToString(pngHeader))
}

func TestEditor_Failures(t *testing.T) {
	t.Run("missing instruction", func(t *testing.T) {
		e, err := imaging.NewEditor("http://127.0.0.1:1", "")
		gt.NoError(t, err).Required()
		_, _, err = e.Edit(context.Background(), pngHeader, "")
		gt.Value(t, err).NotNil()
	})

	t.Run("no image in response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"image": "", "status": "NSFW content detected"}`))
		}))
		defer srv.Close()

		e, err := imaging.NewEditor(srv.URL, "")
		gt.NoError(t, err).Required()
		_, _, err = e.Edit(context.Background(), pngHeader, "add flowers")
		gt.Value(t, err).NotNil()
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		e, err := imaging.NewEditor(srv.URL, "")
		gt.NoError(t, err).Required()
		_, _, err = e.Edit(context.Background(), pngHeader, "add flowers")
		gt.Value(t, err).NotNil()
	})
}
