package planet

import (
	"errors"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yuiseki/underpass/pkg/log"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})
}

const directoryIndex = `<!DOCTYPE html>
<html>
 <head><title>Index of /replication/minute/004/230</title></head>
 <body>
  <h1>Index of /replication/minute/004/230</h1>
  <a href="../">../</a>
  <a href="995.osc.gz">995.osc.gz</a>
  <a href="995.state.txt">995.state.txt</a>
  <a href="996.osc.gz">996.osc.gz</a>
  <a href="996.state.txt">996.state.txt</a>
  <a href="?C=M;O=A">sort by date</a>
 </body>
</html>
`

func TestExtractLinks(t *testing.T) {
	links := extractLinks([]byte(directoryIndex))
	assert.Equal(t, []string{
		"995.osc.gz", "995.state.txt", "996.osc.gz", "996.state.txt",
	}, links)
}

func TestExtractLinksDirectories(t *testing.T) {
	index := `<html><body>
<a href="../">../</a>
<a href="000/">000/</a>
<a href="001/">001/</a>
<a href="robots.txt">robots.txt</a>
</body></html>`

	// Only digit-leading links survive: parent links and stray files are
	// dropped, document order is preserved.
	assert.Equal(t, []string{"000/", "001/"}, extractLinks([]byte(index)))
}

func TestExtractLinksEmpty(t *testing.T) {
	assert.Empty(t, extractLinks([]byte("<html><body>nothing here</body></html>")))
	assert.Empty(t, extractLinks(nil))
}

func TestIsStreamEnd(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"closed conn", net.ErrClosed, true},
		{"reset", errors.New("read tcp: connection reset by peer"), true},
		{"broken pipe", errors.New("write tcp: broken pipe"), true},
		{"other", errors.New("no route to host"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isStreamEnd(tt.err))
		})
	}
}
