// Package embeddings turns chunk text and search queries into vectors.
//
// Three providers are available: FastEmbed runs ONNX models in process (cgo
// builds only), TEI talks to a text-embeddings-inference server, and OpenAI
// uses any OpenAI-compatible embeddings endpoint through langchaingo. Any
// provider can be wrapped with a rate limiter and with OpenTelemetry metrics.
package embeddings
