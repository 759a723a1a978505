// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

// Package logging provides the zerolog-based structured logging used across
// FlixFinder.
//
// The global logger is configured once at startup:
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
// Components receive a zerolog.Logger through their constructors and derive a
// child logger with a component field:
//
//	logger := logging.WithComponent("recommend")
//	logger.Info().Int("version", v).Msg("model installed")
//
// # Adapters
//
// Some libraries bring their own logging interfaces. SlogHandler routes
// log/slog records (used by sutureslog for supervisor events) into zerolog,
// and WatermillAdapter implements watermill.LoggerAdapter for the model
// event bus. Both write through the same zerolog pipeline, so every line
// shares one format and level.
//
// # Context
//
// Request and training run identifiers travel in context.Context:
//
//	ctx = logging.ContextWithNewRequestID(ctx)
//	logging.Ctx(ctx).Info().Msg("serving recommendations")
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send(). Use structured fields
// instead of string formatting:
//
//	logging.Info().Int("user_id", u).Int("n", n).Msg("recommendations served")
package logging
