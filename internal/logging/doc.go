// Package logging wraps zap with context-aware methods.
//
// Every method takes a context.Context and prepends correlation fields found
// in it: the OpenTelemetry trace and span ids, the request id set by the HTTP
// layer, and the document source being ingested.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	ctx = logging.WithSource(ctx, "docs/a.txt")
//	logger.Info(ctx, "document indexed", zap.Int("version", 2))
//
// Output goes to stdout, to an OpenTelemetry log provider through the otelzap
// bridge, or both. Field names that usually hold credentials are redacted by
// the encoder. Levels below error are sampled when sampling is enabled.
//
// Tests use NewTestLogger, which records entries in memory for assertions.
package logging
