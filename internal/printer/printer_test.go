package printer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_Streams(t *testing.T) {
	var out, errOut bytes.Buffer
	p := New(&out, &errOut)

	p.Successf("saved %d", 3)
	p.Infof("nothing to do")
	p.Warnf("careful")
	p.Errorf("broken: %s", "disk")

	assert.Contains(t, out.String(), "saved 3")
	assert.Contains(t, out.String(), "nothing to do")
	assert.NotContains(t, out.String(), "careful")
	assert.Contains(t, errOut.String(), "careful")
	assert.Contains(t, errOut.String(), "broken: disk")
}

func TestPrinter_Success(t *testing.T) {
	var out bytes.Buffer
	p := New(&out, &out)

	p.Success("Committed", "seq 2")
	p.Success("Done", "")

	assert.Contains(t, out.String(), "Committed\n  ")
	assert.Contains(t, out.String(), "seq 2")
	assert.Equal(t, 3, bytes.Count(out.Bytes(), []byte("\n")))
}

func TestCtx(t *testing.T) {
	var out bytes.Buffer
	p := New(&out, &out)

	ctx := NewContext(context.Background(), p)
	assert.Same(t, p, Ctx(ctx))
	assert.NotNil(t, Ctx(context.Background()))
}
