package stm

import "github.com/sirupsen/logrus"

// logger is the package-level sink for the one thing this package logs on
// a host program's behalf: the RunLocked conflict-resolution fallback.
// Packages channel and deferred keep loggers of their own (see
// channel.SetLogger, deferred.SetLogger). Defaults to the standard
// logrus logger so a host program that never calls SetLogger still gets
// output on os.Stderr.
var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the logger used for diagnostic messages emitted by
// this package, such as the RunLocked fallback taken when MaxConflicts is
// exceeded with ConflictRunLocked. Passing nil restores the default.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	logger = l
}
