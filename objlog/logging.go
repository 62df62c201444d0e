// Package objlog provides the logging infrastructure shared by every
// objectdb component: a global logrus logger with stream-separated
// output, so error-level records can be routed to monitoring pipelines
// independently of normal operational logs.
package objlog

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus output by severity: lines formatted at
// error level go to stderr, everything else to stdout. This keeps
// container log collectors able to treat the two streams differently
// without parsing the structured fields themselves.
type OutputSplitter struct{}

func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logger. Components should derive a
// *logrus.Entry from it via WithField("component", name) rather than
// logging through it directly, so log lines are attributable.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

// For returns a component-scoped entry.
func For(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}
