package tracing

import (
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitGlobalTracer installs a jaeger tracer configured from the JAEGER_*
// environment variables. Without JAEGER_AGENT_HOST or JAEGER_ENDPOINT the
// global noop tracer is kept.
func InitGlobalTracer(serviceName string) io.Closer {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		logrus.Warnf("invalid jaeger configuration, tracing disabled: %v", err)
		return nopCloser{}
	}
	if cfg.Reporter == nil || (cfg.Reporter.LocalAgentHostPort == "" && cfg.Reporter.CollectorEndpoint == "") {
		logrus.Info("jaeger not configured, tracing disabled")
		return nopCloser{}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		logrus.Warnf("failed to create jaeger tracer, tracing disabled: %v", err)
		return nopCloser{}
	}
	opentracing.SetGlobalTracer(tracer)
	return closer
}
