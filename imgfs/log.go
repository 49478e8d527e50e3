package imgfs

import "github.com/sirupsen/logrus"

// logger is package-global rather than per-Handle: a Handle is cheap and
// transient (one per call), so there is nowhere sensible to hang a logger
// field that would outlive it. SetLogger lets a host redirect or silence
// output; the zero value is a logrus logger at its default level (Info),
// which emits nothing from the Debug-level calls below until a host opts
// in.
var logger = logrus.New()

// SetLogger replaces the package's logger. Passing nil restores a default
// logger.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = logrus.New()
	}
	logger = l
}

func logOp(op, path string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"op": op, "path": path})
}
