package safe_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/utils/safe"
)

type brokenWriter struct{ calls int }

func (w *brokenWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("broken pipe")
}

type trackingReader struct {
	io.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}

func TestWrite(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	safe.Write(ctx, &buf, []byte(`{"ok":true}`))
	gt.Value(t, buf.String()).Equal(`{"ok":true}`)

	broken := &brokenWriter{}
	safe.Write(ctx, broken, []byte("lost"))
	gt.Number(t, broken.calls).Equal(1)

	safe.Write(ctx, nil, []byte("ignored"))
}

func TestDrain(t *testing.T) {
	body := &trackingReader{Reader: strings.NewReader("rest of the response")}
	safe.Drain(context.Background(), body)
	gt.Bool(t, body.closed).True()

	safe.Drain(context.Background(), nil)
}
