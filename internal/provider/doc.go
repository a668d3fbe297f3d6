// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package provider abstracts the interchangeable AI text-completion
// backends behind one Provider interface and supplies:
//
//   - a Registry that maps a selector plus configuration to a constructed
//     provider, with an optional external model-registry override that
//     degrades to the local configuration when unsatisfiable
//   - a HealthMonitor tracking rolling success/failure/latency per
//     provider, wrapping calls in a circuit breaker
//   - concrete backends: the OpenAI-compatible chat-completions wire
//     format (OpenAI, OpenRouter, Ollama, LM Studio) and Google Gemini
//
// Transport retries with exponential backoff happen inside a single
// provider call; the orchestrator's top-up loop retries only for content
// insufficiency.
package provider
