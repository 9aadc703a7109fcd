/*
Package runtime assembles lambdabridge: pollers that pull invocations from the
AWS Lambda Runtime API and hand them to an in-process target, plus the control
bus that binds and removes tenants.

# Architecture Overview

A tenant is one Runtime API endpoint. Each bound tenant gets a poller
goroutine that loops over /invocation/next, classifies the payload, dispatches
it and posts the outcome back. Pollers never run two invocations at once.

# Package Structure

  - runtimeapi: HTTP client for the Runtime API.
  - classify: decides whether a payload is an ALB HTTP request.
  - dispatch: envelopes and the swappable dispatch target.
  - poller: the per-tenant loop, invocation hooks and duplicate tracking.
  - lifecycle: the tenant table and the BindActor/RemoveActor capability.
  - control: watermill router consuming control commands.
  - metrics: Prometheus collectors for pollers.
  - config, logging, errors, ids, jsoncodec, metadata: shared plumbing.

Bridge in this package wires all of them from a Config.
*/
package runtime
