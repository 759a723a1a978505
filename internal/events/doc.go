// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

// Package events carries model lifecycle notifications between components.
//
// The Bus is an in-process watermill pub/sub (gochannel). The training
// pipeline publishes a recommend.ModelPublishedEvent on TopicModelPublished
// after every successful save; the model watcher subscribes and refreshes the
// serving ModelHolder. Payloads are JSON.
//
// Delivery is at-most-once: messages published while nobody is subscribed
// are dropped. The watcher also polls the artifact store, so a lost event
// only delays a reload.
package events
